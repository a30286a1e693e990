package publisher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"wechat_ai_editor/generator"
	"wechat_ai_editor/media"
)

const (
	DefaultAPIBase = "https://api.weixin.qq.com"

	accessTokenPath = "/cgi-bin/token"
	uploadImagePath = "/cgi-bin/material/add_material"
	uploadImgPath   = "/cgi-bin/media/uploadimg"
	addDraftPath    = "/cgi-bin/draft/add"

	digestLimit = 120
)

// Config holds the WeChat app credentials.
type Config struct {
	AppID     string
	AppSecret string
	// APIBase overrides the WeChat API host.
	APIBase string
}

// Params describes the article to publish.
type Params struct {
	Title  string
	Author string
	Digest string
	HTML   string
	Images []media.Asset
	// CoverID picks the cover among Images; empty means the first image.
	CoverID string
}

type accessTokenResp struct {
	AccessToken string `json:"access_token"`
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
}

type uploadImageResp struct {
	MediaID string `json:"media_id"`
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

type uploadImgResp struct {
	URL     string `json:"url"`
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

type addDraftResp struct {
	MediaID string `json:"media_id"`
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

type article struct {
	Title              string `json:"title"`
	Author             string `json:"author"`
	Digest             string `json:"digest"`
	Content            string `json:"content"`
	ThumbMediaID       string `json:"thumb_media_id"`
	NeedOpenComment    int    `json:"need_open_comment"`
	OnlyFansCanComment int    `json:"only_fans_can_comment"`
}

type addDraftPayload struct {
	Articles []article `json:"articles"`
}

// Publisher uploads a formatted article and its images to the WeChat draft box.
type Publisher struct {
	cfg         Config
	client      *http.Client
	accessToken string
	logger      *slog.Logger
}

// New creates a Publisher and fetches the access token immediately so it can be reused.
func New(ctx context.Context, cfg Config, client *http.Client, logger *slog.Logger) (*Publisher, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, errors.New("config must include app_id and app_secret")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	p := &Publisher{cfg: cfg, client: client, logger: logger}
	accessToken, err := p.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	p.accessToken = accessToken
	return p, nil
}

// PublishDraft creates a draft from params and returns its media_id.
func (p *Publisher) PublishDraft(ctx context.Context, params Params) (string, error) {
	if strings.TrimSpace(params.HTML) == "" {
		return "", errors.New("article html is empty")
	}

	title := params.Title
	if title == "" {
		title = generator.ExtractTitle(params.HTML)
	}
	if title == "" {
		return "", errors.New("title is required (none given and no heading found)")
	}
	digest := params.Digest
	if digest == "" {
		digest = generator.ExtractDigest(params.HTML, digestLimit)
	}

	cover, err := pickCover(params.Images, params.CoverID)
	if err != nil {
		return "", err
	}

	content, err := p.replaceInlineImages(ctx, params.HTML, params.Images)
	if err != nil {
		return "", err
	}
	p.logger.Debug("uploaded inline images")

	content = normalizeForWeChat(content)
	p.logger.Debug("normalized html for wechat")

	coverData, err := cover.Bytes()
	if err != nil {
		return "", fmt.Errorf("decode cover %s: %w", cover.Name, err)
	}
	thumbMediaID, err := p.uploadImage(ctx, fileName(cover.Name, cover.MIMEType, 0), coverData)
	if err != nil {
		return "", err
	}
	p.logger.Debug("uploaded cover image", "name", cover.Name, "media_id", thumbMediaID)

	art := article{
		Title:              title,
		Author:             params.Author,
		Digest:             digest,
		Content:            content,
		ThumbMediaID:       thumbMediaID,
		NeedOpenComment:    0,
		OnlyFansCanComment: 0,
	}

	mediaID, err := p.addDraft(ctx, art)
	if err != nil {
		return "", err
	}
	p.logger.Info("draft created", "media_id", mediaID, "title", title)
	return mediaID, nil
}

func pickCover(images []media.Asset, coverID string) (media.Asset, error) {
	if len(images) == 0 {
		return media.Asset{}, errors.New("a cover image is required; attach at least one image")
	}
	if coverID == "" {
		return images[0], nil
	}
	for _, a := range images {
		if a.ID == coverID {
			return a, nil
		}
	}
	return media.Asset{}, fmt.Errorf("cover image %s not found", coverID)
}

func (p *Publisher) endpoint(path string, query url.Values) string {
	return p.cfg.APIBase + path + "?" + query.Encode()
}

func (p *Publisher) getAccessToken(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("grant_type", "client_credential")
	q.Set("appid", p.cfg.AppID)
	q.Set("secret", p.cfg.AppSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(accessTokenPath, q), nil)
	if err != nil {
		return "", err
	}
	var data accessTokenResp
	if err := p.doJSON(req, &data); err != nil {
		return "", err
	}
	if data.AccessToken == "" {
		return "", fmt.Errorf("failed to get access_token: %d %s", data.ErrCode, data.ErrMsg)
	}
	return data.AccessToken, nil
}

// uploadImage stores a permanent image and returns its media_id (used for covers).
func (p *Publisher) uploadImage(ctx context.Context, name string, data []byte) (string, error) {
	q := url.Values{}
	q.Set("access_token", p.accessToken)
	q.Set("type", "image")

	var resp uploadImageResp
	if err := p.uploadMultipart(ctx, p.endpoint(uploadImagePath, q), name, data, &resp); err != nil {
		return "", err
	}
	if resp.MediaID == "" {
		return "", fmt.Errorf("failed to upload image: %d %s", resp.ErrCode, resp.ErrMsg)
	}
	return resp.MediaID, nil
}

// uploadContentImage stores an image for use inside article content and returns its URL.
func (p *Publisher) uploadContentImage(ctx context.Context, name string, data []byte) (string, error) {
	q := url.Values{}
	q.Set("access_token", p.accessToken)

	var resp uploadImgResp
	if err := p.uploadMultipart(ctx, p.endpoint(uploadImgPath, q), name, data, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("failed to upload content image: %d %s", resp.ErrCode, resp.ErrMsg)
	}
	return resp.URL, nil
}

func (p *Publisher) uploadMultipart(ctx context.Context, endpoint, name string, data []byte, out any) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("media", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return p.doJSON(req, out)
}

func (p *Publisher) addDraft(ctx context.Context, art article) (string, error) {
	body, err := json.Marshal(addDraftPayload{Articles: []article{art}})
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("access_token", p.accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(addDraftPath, q), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var data addDraftResp
	if err := p.doJSON(req, &data); err != nil {
		return "", err
	}
	if data.MediaID == "" {
		return "", fmt.Errorf("failed to add draft: %d %s", data.ErrCode, data.ErrMsg)
	}
	return data.MediaID, nil
}

func (p *Publisher) doJSON(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("wechat api %s: status %d", req.URL.Path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var dataImageRe = regexp.MustCompile(`data:(image/[a-zA-Z0-9.+-]+);base64,([A-Za-z0-9+/=]+)`)

// replaceInlineImages uploads every data-URI image in html and swaps in the
// hosted URL. Each distinct payload is uploaded once.
func (p *Publisher) replaceInlineImages(ctx context.Context, html string, images []media.Asset) (string, error) {
	matches := dataImageRe.FindAllStringSubmatchIndex(html, -1)
	if len(matches) == 0 {
		return html, nil
	}

	names := make(map[string]string, len(images))
	for _, a := range images {
		names[a.Payload] = a.Name
	}
	uploaded := make(map[string]string)

	var builder strings.Builder
	last := 0
	for n, m := range matches {
		mimeType := html[m[2]:m[3]]
		payload := html[m[4]:m[5]]
		builder.WriteString(html[last:m[0]])
		last = m[1]

		if hosted, ok := uploaded[payload]; ok {
			builder.WriteString(hosted)
			continue
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", fmt.Errorf("decode inline image %d: %w", n, err)
		}
		hosted, err := p.uploadContentImage(ctx, fileName(names[payload], mimeType, n), data)
		if err != nil {
			return "", err
		}
		uploaded[payload] = hosted
		builder.WriteString(hosted)
	}
	builder.WriteString(html[last:])
	return builder.String(), nil
}

func fileName(name, mimeType string, n int) string {
	if name != "" {
		return name
	}
	ext := ".png"
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		ext = exts[0]
	}
	return fmt.Sprintf("image-%d%s", n, ext)
}
