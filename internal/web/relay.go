package web

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/airlur/boxysync/internal/dav"
	"github.com/airlur/boxysync/internal/document"
)

const githubAPIBase = "https://api.github.com"

// relayMethods is the whitelist of WebDAV verbs the relay forwards.
var relayMethods = map[string]bool{
	"GET":      true,
	"PUT":      true,
	"DELETE":   true,
	"MKCOL":    true,
	"PROPFIND": true,
	"COPY":     true,
	"MOVE":     true,
}

type relayRequest struct {
	Endpoint    string `json:"endpoint" binding:"required"`
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Method      string `json:"method"`
	Data        string `json:"data,omitempty"`
	Destination string `json:"destination,omitempty"`
}

// APIWebDavRelay forwards a single WebDAV request to the caller's server and
// returns the upstream result in a uniform envelope. Browsers can't speak
// WebDAV cross-origin, so this endpoint does it for them.
func (h *Handlers) APIWebDavRelay(c *gin.Context) {
	var req relayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint, username and password are required"})
		return
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = "GET"
	}
	if !relayMethods[method] {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("method %s is not allowed", method)})
		return
	}

	var body []byte
	if req.Data != "" {
		body = []byte(req.Data)
	}

	client := dav.NewClient(req.Username, req.Password)
	res, err := client.Do(c.Request.Context(), method, req.Endpoint, body, req.Destination)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": sanitizeError(err, "WebDAV server unreachable")})
		return
	}

	envelope := gin.H{"ok": res.OK, "status": res.Status}
	if len(res.JSON) > 0 {
		envelope["json"] = res.JSON
	} else if res.Text != "" {
		envelope["text"] = res.Text
	}
	c.JSON(http.StatusOK, envelope)
}

type shareRequest struct {
	Document *document.Document      `json:"document,omitempty"`
	Entry    *document.SoftwareEntry `json:"entry,omitempty"`
}

type gistFile struct {
	Content string `json:"content"`
	RawURL  string `json:"raw_url,omitempty"`
	// Truncated is set by the API when Content is incomplete.
	Truncated bool `json:"truncated,omitempty"`
}

type gistPayload struct {
	Description string              `json:"description"`
	Public      bool                `json:"public"`
	Files       map[string]gistFile `json:"files"`
}

type gistResponse struct {
	ID      string              `json:"id"`
	HTMLURL string              `json:"html_url"`
	Files   map[string]gistFile `json:"files"`
	Message string              `json:"message,omitempty"`
}

const shareFileName = "boxy_data.json"

// APIShare uploads a document or a single entry as a private gist and
// returns the share id.
func (h *Handlers) APIShare(c *gin.Context) {
	if h.cfg.GitHub.Token == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sharing is not configured on this server"})
		return
	}

	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid share body"})
		return
	}

	var content []byte
	var desc string
	switch {
	case req.Document != nil:
		b, err := req.Document.Encode()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "failed to encode document")})
			return
		}
		content = b
		desc = fmt.Sprintf("Boxy shared collection (%d entries)", req.Document.EntryCount())
	case req.Entry != nil:
		b, err := json.MarshalIndent(req.Entry, "", "  ")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "failed to encode entry")})
			return
		}
		content = b
		desc = "Boxy shared entry: " + req.Entry.Name
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to share"})
		return
	}

	payload := gistPayload{
		Description: desc,
		Public:      false,
		Files:       map[string]gistFile{shareFileName: {Content: string(content)}},
	}

	var created gistResponse
	status, err := h.githubRequest(c, "POST", githubAPIBase+"/gists", payload, &created)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": sanitizeError(err, "failed to reach GitHub")})
		return
	}
	if status != http.StatusCreated {
		c.JSON(http.StatusBadGateway, gin.H{"error": sanitizeError(errors.New(created.Message), "failed to create share")})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": created.ID, "url": created.HTMLURL})
}

// APIEnterPreview fetches a shared gist and switches the app into read-only
// preview of its document.
func (h *Handlers) APIEnterPreview(c *gin.Context) {
	gistID := c.Param("gist")
	if !isGistID(gistID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid share id"})
		return
	}

	var gist gistResponse
	status, err := h.githubRequest(c, "GET", githubAPIBase+"/gists/"+gistID, nil, &gist)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": sanitizeError(err, "failed to reach GitHub")})
		return
	}
	if status == http.StatusNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "share not found"})
		return
	}
	if status != http.StatusOK {
		c.JSON(http.StatusBadGateway, gin.H{"error": sanitizeError(errors.New(gist.Message), "failed to load share")})
		return
	}

	file, ok := gist.Files[shareFileName]
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "share does not contain a Boxy document"})
		return
	}

	content := []byte(file.Content)
	if file.Truncated && file.RawURL != "" {
		content, err = h.fetchRaw(c, file.RawURL)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": sanitizeError(err, "failed to load share content")})
			return
		}
	}

	doc, err := document.Parse(content)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "share is not a valid Boxy document"})
		return
	}

	h.store.EnterPreview(doc)
	c.JSON(http.StatusOK, gin.H{"document": doc, "preview": true})
}

// APIExitPreview returns the app to the local document.
func (h *Handlers) APIExitPreview(c *gin.Context) {
	h.store.ExitPreview()
	c.JSON(http.StatusOK, gin.H{"document": h.store.Document(), "preview": false})
}

func isGistID(id string) bool {
	if len(id) < 8 || len(id) > 64 {
		return false
	}
	for _, r := range id {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

const faviconCacheControl = "public, max-age=86400"

// APIFavicon proxies favicon lookups through Google's s2 service so the
// browser never talks to a third party directly.
func (h *Handlers) APIFavicon(c *gin.Context) {
	domain := c.Query("domain")
	if domain == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "domain query parameter is required"})
		return
	}
	if u, err := url.Parse(domain); err == nil && u.Host != "" {
		domain = u.Host
	}

	upstream := "https://www.google.com/s2/favicons?sz=64&domain=" + url.QueryEscape(domain)
	req, err := http.NewRequestWithContext(c.Request.Context(), "GET", upstream, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "failed to build favicon request")})
		return
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": sanitizeError(err, "favicon service unreachable")})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.JSON(http.StatusNotFound, gin.H{"error": "no favicon for this domain"})
		return
	}

	c.Header("Cache-Control", faviconCacheControl)
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	c.DataFromReader(http.StatusOK, resp.ContentLength, contentType, resp.Body, nil)
}

type updateRepoRequest struct {
	Password string `json:"password" binding:"required"`
	Path     string `json:"path" binding:"required"`
	Content  string `json:"content" binding:"required"`
	Message  string `json:"message,omitempty"`
}

type repoContentResponse struct {
	SHA     string `json:"sha"`
	Message string `json:"message,omitempty"`
}

// APIUpdateRepo commits a file to the configured GitHub repository. Used by
// the hosted instance to publish curated data updates.
func (h *Handlers) APIUpdateRepo(c *gin.Context) {
	if h.cfg.Admin.Password == "" || h.cfg.GitHub.Token == "" || h.cfg.GitHub.Repo == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "repository updates are not configured on this server"})
		return
	}

	var req updateRepoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password, path and content are required"})
		return
	}
	if req.Password != h.cfg.Admin.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin password"})
		return
	}
	if strings.Contains(req.Path, "..") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid path"})
		return
	}

	contentsURL := fmt.Sprintf("%s/repos/%s/contents/%s", githubAPIBase, h.cfg.GitHub.Repo, req.Path)

	// The contents API requires the current blob sha when the file exists.
	var existing repoContentResponse
	status, err := h.githubRequest(c, "GET", contentsURL, nil, &existing)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": sanitizeError(err, "failed to reach GitHub")})
		return
	}

	message := req.Message
	if message == "" {
		message = "Update " + req.Path
	}

	put := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(req.Content)),
	}
	if status == http.StatusOK && existing.SHA != "" {
		put["sha"] = existing.SHA
	}

	var result repoContentResponse
	status, err = h.githubRequest(c, "PUT", contentsURL, put, &result)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": sanitizeError(err, "failed to reach GitHub")})
		return
	}
	if status != http.StatusOK && status != http.StatusCreated {
		c.JSON(http.StatusBadGateway, gin.H{"error": sanitizeError(errors.New(result.Message), "failed to update repository")})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "updated " + req.Path})
}

// githubRequest performs an authenticated GitHub API call and decodes the
// JSON response into out. The HTTP status is returned even on non-2xx so
// callers can map it.
func (h *Handlers) githubRequest(c *gin.Context, method, apiURL string, payload, out any) (int, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), method, apiURL, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+h.cfg.GitHub.Token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp.StatusCode, fmt.Errorf("decoding GitHub response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (h *Handlers) fetchRaw(c *gin.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(c.Request.Context(), "GET", rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("raw content fetch returned %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}
