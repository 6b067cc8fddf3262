package server

import (
	"bytes"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smonier/importContentFromJson/internal/htmlsource"
	"github.com/smonier/importContentFromJson/internal/importer"
	"github.com/smonier/importContentFromJson/internal/mapping"
	"github.com/smonier/importContentFromJson/internal/record"
)

// maxUploadBytes caps the source document size.
const maxUploadBytes = 32 << 20

// sampleSize is how many records the upload response echoes back for the
// "first rows" panel.
const sampleSize = 5

type createSessionRequest struct {
	SiteKey  string `json:"siteKey" binding:"required"`
	Language string `json:"language" binding:"required"`
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	sess := importer.NewSession(req.SiteKey, req.Language)
	s.sessions.Add(sess)
	s.log.Info("session created",
		zap.String("session", sess.ID()),
		zap.String("site", req.SiteKey),
		zap.String("language", req.Language),
	)
	c.JSON(http.StatusCreated, sessionView(sess))
}

func (s *Server) session(c *gin.Context) (*importer.Session, bool) {
	sess, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return sess, true
}

func sessionView(sess *importer.Session) gin.H {
	return gin.H{
		"id":          sess.ID(),
		"siteKey":     sess.SiteKey(),
		"language":    sess.Language(),
		"state":       sess.State().String(),
		"contentType": sess.ContentType(),
		"records":     len(sess.Records()),
		"fields":      sess.Fields(),
		"mappings":    sess.Mappings(),
		"createdAt":   sess.CreatedAt(),
	}
}

func (s *Server) getSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionView(sess))
}

func (s *Server) deleteSession(c *gin.Context) {
	s.sessions.Delete(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// uploadSource ingests the raw source document. The format query selects the
// parser: json (default), csv with an optional single-character separator, or
// html with an optional table selector. Passing recordSelector switches html
// uploads to listing harvesting, with each field query naming one
// name=selector pair.
func (s *Server) uploadSource(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot read upload", "details": err.Error()})
		return
	}
	if len(body) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload too large"})
		return
	}

	var (
		records []record.Raw
		fields  []string
	)
	switch format := c.DefaultQuery("format", "json"); format {
	case "json":
		records, err = record.ParseJSON(body)
	case "csv":
		opt := record.CSVOptions{TrimSpace: true}
		if sep := c.Query("separator"); sep != "" {
			r := []rune(sep)
			if len(r) != 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Separator must be a single character"})
				return
			}
			opt.Comma = r[0]
		}
		records, fields, err = record.ParseCSV(bytes.NewReader(body), opt)
	case "html":
		if rs := c.Query("recordSelector"); rs != "" {
			fieldSel := map[string]string{}
			for _, pair := range c.QueryArray("field") {
				name, sel, ok := strings.Cut(pair, "=")
				if !ok || name == "" || sel == "" {
					c.JSON(http.StatusBadRequest, gin.H{"error": "Field selectors must be name=selector pairs", "details": pair})
					return
				}
				fieldSel[name] = sel
			}
			if len(fieldSel) == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Listing harvesting needs at least one field selector"})
				return
			}
			records, err = htmlsource.ParseListing(bytes.NewReader(body), rs, fieldSel)
		} else {
			records, err = htmlsource.ParseTable(bytes.NewReader(body), c.Query("selector"))
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported format", "details": format})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot parse upload", "details": err.Error()})
		return
	}
	if fields == nil && len(records) > 0 {
		fields = record.Fields(records[0])
	}

	if err := sess.SetSource(records, fields); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	sample := records
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	c.JSON(http.StatusOK, gin.H{
		"records":  len(records),
		"fields":   fields,
		"sample":   sample,
		"mappings": sess.Mappings(),
		"state":    sess.State().String(),
	})
}

type contentTypeRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) selectContentType(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req contentTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	defs, err := s.repo.ContentTypeProperties(c.Request.Context(), req.Name, sess.Language())
	if err != nil {
		s.log.Error("content type lookup failed", zap.String("type", req.Name), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Cannot fetch content type", "details": err.Error()})
		return
	}
	if err := sess.SetContentType(req.Name, defs); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"definitions": defs,
		"mappings":    sess.Mappings(),
		"state":       sess.State().String(),
	})
}

type mappingsRequest struct {
	Mappings map[string]*string `json:"mappings" binding:"required"`
}

func (s *Server) putMappings(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req mappingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if err := sess.SetMappings(mapping.FieldMappings(req.Mappings)); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": sess.Mappings(), "state": sess.State().String()})
}

func (s *Server) generatePreview(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	entries, err := sess.GeneratePreview()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "state": sess.State().String()})
}

// downloadPreview streams the mapped entries as a file attachment, JSON by
// default or CSV with ?format=csv.
func (s *Server) downloadPreview(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	entries := sess.Entries()
	if entries == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "No preview generated"})
		return
	}

	switch format := c.DefaultQuery("format", "json"); format {
	case "json":
		c.Header("Content-Disposition", `attachment; filename="preview.json"`)
		c.Header("Content-Type", "application/json")
		if err := mapping.WriteJSON(c.Writer, entries); err != nil {
			s.log.Error("preview download failed", zap.Error(err))
		}
	case "csv":
		sep := ','
		if q := c.Query("separator"); q != "" {
			r := []rune(q)
			if len(r) != 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Separator must be a single character"})
				return
			}
			sep = r[0]
		}
		var headers []string
		for _, def := range sess.Defs() {
			headers = append(headers, def.Name)
		}
		headers = append(headers, mapping.ReservedTargets...)

		c.Header("Content-Disposition", `attachment; filename="preview.csv"`)
		c.Header("Content-Type", "text/csv")
		if err := mapping.WriteCSV(c.Writer, entries, headers, sep); err != nil {
			s.log.Error("preview download failed", zap.Error(err))
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported format", "details": format})
	}
}

type importRequest struct {
	PathSuffix string `json:"pathSuffix"`
	Override   bool   `json:"override"`
}

func (s *Server) runImport(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	job, err := sess.BeginImport(req.PathSuffix, req.Override)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	job.Fetcher = s.fetcher

	runner := &importer.Runner{Repo: s.repo, Categories: s.cats, Log: s.log}
	rep := runner.Run(c.Request.Context(), job)

	if err := sess.FinishImport(rep); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": rep, "state": sess.State().String()})
}

func (s *Server) getReport(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	rep := sess.Report()
	if rep == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "No import has run"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="import-report.json"`)
	c.JSON(http.StatusOK, rep)
}

func (s *Server) listContentTypes(c *gin.Context) {
	types, err := s.repo.ContentTypes(c.Request.Context(), c.Param("site"), c.Query("language"))
	if err != nil {
		s.log.Error("content types lookup failed", zap.String("site", c.Param("site")), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Cannot fetch content types", "details": err.Error()})
		return
	}
	sort.SliceStable(types, func(i, j int) bool {
		return strings.ToLower(types[i].DisplayName) < strings.ToLower(types[j].DisplayName)
	})
	c.JSON(http.StatusOK, gin.H{"contentTypes": types})
}

func (s *Server) listLanguages(c *gin.Context) {
	langs, err := s.repo.SiteLanguages(c.Request.Context(), c.Param("site"))
	if err != nil {
		s.log.Error("languages lookup failed", zap.String("site", c.Param("site")), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Cannot fetch languages", "details": err.Error()})
		return
	}
	sort.SliceStable(langs, func(i, j int) bool {
		return strings.ToLower(langs[i].DisplayName) < strings.ToLower(langs[j].DisplayName)
	})
	c.JSON(http.StatusOK, gin.H{"languages": langs})
}
