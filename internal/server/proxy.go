package server

import (
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// proxyMaxBytes caps the proxied image size.
const proxyMaxBytes = 20 << 20

// imageProxy fetches a remote image on behalf of the browser so that mapping
// previews can show thumbnails without tripping cross-origin rules. Only
// http(s) URLs are allowed and the body size is capped; the upstream
// content type passes through.
func (s *Server) imageProxy(c *gin.Context) {
	raw := c.Query("url")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing url parameter"})
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only absolute http(s) URLs are allowed"})
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, u.String(), nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid url", "details": err.Error()})
		return
	}
	resp, err := s.proxyClient.Do(req)
	if err != nil {
		s.log.Warn("image proxy fetch failed", zap.String("url", raw), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Cannot fetch image", "details": err.Error()})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Upstream returned non-200", "details": resp.Status})
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(s.proxyMax)+1))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Cannot read image", "details": err.Error()})
		return
	}
	if len(body) > s.proxyMax {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image exceeds proxy size limit"})
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, body)
}
