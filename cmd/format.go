package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wechat_ai_editor/config"
	"wechat_ai_editor/docimport"
	"wechat_ai_editor/generator"
	"wechat_ai_editor/media"
)

var (
	formatText    string
	formatFile    string
	formatImages  []string
	formatDoc     string
	formatTone    string
	formatNoEmoji bool
	formatOut     string
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Format text, images and a document into WeChat article HTML",
	Long: `Format raw input into styled WeChat article HTML and save it to history.

Images are placed by the model in the order given. A .docx document is
appended to the text; a .pdf document is sent to the model as-is.

Examples:
  wechat-editor format --text "Hello world" --image a.png --image b.png
  wechat-editor format --file draft.txt --tone witty --no-emoji --out article.html
  wechat-editor format --doc report.pdf`,
	RunE: runFormat,
}

func init() {
	rootCmd.AddCommand(formatCmd)

	formatCmd.Flags().StringVar(&formatText, "text", "", "Raw article text")
	formatCmd.Flags().StringVar(&formatFile, "file", "", "Read raw article text from file")
	formatCmd.Flags().StringArrayVar(&formatImages, "image", nil, "Image to place in the article (repeatable, order kept)")
	formatCmd.Flags().StringVar(&formatDoc, "doc", "", "Import a .docx or .pdf document")
	formatCmd.Flags().StringVar(&formatTone, "tone", string(generator.ToneProfessional), "Tone: professional, casual, emotional or witty")
	formatCmd.Flags().BoolVar(&formatNoEmoji, "no-emoji", false, "Do not use emojis")
	formatCmd.Flags().StringVar(&formatOut, "out", "", "Write HTML to file instead of stdout")
}

func runFormat(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	hist, closeHist, err := openHistory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeHist()

	session, err := newSession(cfg, hist, logger)
	if err != nil {
		return err
	}

	text := formatText
	if formatFile != "" {
		data, err := os.ReadFile(formatFile)
		if err != nil {
			return fmt.Errorf("read text file: %w", err)
		}
		text = string(data)
	}
	session.SetText(text)

	if err := session.SetTone(generator.Tone(formatTone)); err != nil {
		return err
	}
	if formatNoEmoji {
		session.ToggleEmoji()
	}

	if len(formatImages) > 0 {
		files := make([]media.File, len(formatImages))
		for i, p := range formatImages {
			files[i] = media.FromPath(p)
		}
		_, failures := session.AddImages(ctx, files)
		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "skipping image: %v\n", f)
		}
	}

	var (
		html      string
		formatted bool
	)
	if formatDoc != "" {
		data, err := os.ReadFile(formatDoc)
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
		res, err := session.ImportDocument(ctx, formatDoc, data)
		if err != nil {
			return err
		}
		html = res.HTML
		formatted = res.Kind == docimport.KindPDF
	}

	if !formatted {
		html, err = session.Format(ctx)
		if errors.Is(err, generator.ErrNothingToFormat) {
			return errors.New("nothing to format: provide --text, --file, --image or --doc")
		}
		if err != nil {
			return err
		}
	}

	if formatOut != "" {
		if err := os.WriteFile(formatOut, []byte(html), 0o644); err != nil {
			return fmt.Errorf("write html: %w", err)
		}
		fmt.Fprintf(out, "Wrote %s\n", formatOut)
		return nil
	}
	fmt.Fprintln(out, html)
	return nil
}
