package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wechat_ai_editor/config"
	"wechat_ai_editor/media"
	"wechat_ai_editor/publisher"
)

var (
	publishID     string
	publishTitle  string
	publishAuthor string
	publishDigest string
	publishCover  string

	publishMarkdown string
	publishImages   []string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Push a saved draft to the WeChat draft box",
	Long: `Upload a saved draft and its images to the WeChat Official Account
draft box. Requires app_id and app_secret in the config.

With --markdown a hand-written Markdown file is published instead of a
saved draft; --image attaches the cover and any inline images.

Examples:
  wechat-editor publish
  wechat-editor publish --id 3f2a... --author "Editor" --cover 9b1c...
  wechat-editor publish --markdown post.md --image cover.jpg`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().StringVar(&publishID, "id", "", "History entry to publish (default newest)")
	publishCmd.Flags().StringVar(&publishTitle, "title", "", "Article title (default first heading)")
	publishCmd.Flags().StringVar(&publishAuthor, "author", "", "Article author")
	publishCmd.Flags().StringVar(&publishDigest, "digest", "", "Article digest (default first 120 characters)")
	publishCmd.Flags().StringVar(&publishCover, "cover", "", "Image id used as cover (default first image)")
	publishCmd.Flags().StringVar(&publishMarkdown, "markdown", "", "Publish a Markdown file instead of a saved draft")
	publishCmd.Flags().StringArrayVar(&publishImages, "image", nil, "Image for a Markdown article (repeatable, first is the cover)")
}

func runPublish(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if !cfg.HasWeChat() {
		return errors.New("app_id and app_secret are required to publish")
	}

	ctx := context.Background()
	var (
		label  string
		html   string
		images []media.Asset
	)
	if publishMarkdown != "" {
		html, images, err = markdownArticle(publishMarkdown, publishImages)
		if err != nil {
			return err
		}
		label = publishMarkdown
	} else {
		hist, closeHist, err := openHistory(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeHist()

		entries := hist.List()
		if len(entries) == 0 {
			return errors.New("no drafts saved, run format first")
		}
		entry := entries[0]
		if publishID != "" {
			if entry, err = hist.Select(publishID); err != nil {
				return err
			}
		}
		label, html, images = entry.ID, entry.FormattedContent, entry.Images
	}

	pub, err := publisher.New(ctx, publisher.Config{AppID: cfg.AppID, AppSecret: cfg.AppSecret}, nil, logger)
	if err != nil {
		return err
	}
	mediaID, err := pub.PublishDraft(ctx, publisher.Params{
		Title:   publishTitle,
		Author:  publishAuthor,
		Digest:  publishDigest,
		HTML:    html,
		Images:  images,
		CoverID: publishCover,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Draft %s published, media_id=%s\n", label, mediaID)
	return nil
}

// markdownArticle renders a Markdown file and decodes the images given
// with it, in order.
func markdownArticle(path string, imagePaths []string) (string, []media.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read markdown: %w", err)
	}
	html, err := publisher.MarkdownToHTML(data)
	if err != nil {
		return "", nil, fmt.Errorf("render markdown: %w", err)
	}

	images := make([]media.Asset, 0, len(imagePaths))
	for _, p := range imagePaths {
		asset, err := media.Decode(media.FromPath(p))
		if err != nil {
			return "", nil, fmt.Errorf("image %s: %w", p, err)
		}
		images = append(images, asset)
	}
	return html, images, nil
}
