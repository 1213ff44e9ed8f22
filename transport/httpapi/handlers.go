package httpapi

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/ingestion"
	"github.com/poiesic/groundwork/retrieval"
	"github.com/poiesic/groundwork/storage"
)

// RetrieveRequest is the body of POST /v1/retrieve.
type RetrieveRequest struct {
	Question  string             `json:"question"`
	Resources []ResourceSelector `json:"resources"`
}

// ResourceSelector names one resource to search.
type ResourceSelector struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IngestRequest is the JSON body of POST /v1/resources.
type IngestRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Text string `json:"text" binding:"required"`
}

// IngestResponse reports a stored resource.
type IngestResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Chunks   int    `json:"chunks"`
	Replaced bool   `json:"replaced"`
}

// ErrorBody is returned for failures outside the retrieval envelope.
type ErrorBody struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) retrieve(c *gin.Context) {
	var req RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, retrieval.ErrorResponse("", nil, err))
		return
	}

	resources := make([]core.Resource, len(req.Resources))
	for i, r := range req.Resources {
		resources[i] = core.Resource{ID: core.ResourceID(r.ID), Name: r.Name}
	}

	resp, err := s.service.RetrieveResponse(c.Request.Context(), req.Question, resources)
	if err != nil {
		if resp == nil {
			resp = retrieval.ErrorResponse(req.Question, resources, err)
		}
		c.JSON(statusFor(err), resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listResources(c *gin.Context) {
	ids, err := s.service.ListResources(c.Request.Context())
	if err != nil {
		s.logger.Error("error listing resources", "err", err)
		respondWithError(c, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if ids == nil {
		ids = []core.ResourceID{}
	}
	c.JSON(http.StatusOK, gin.H{"resources": ids})
}

// ingest accepts either a JSON IngestRequest or a multipart upload with a
// "file" part and optional "id" and "name" fields.
func (s *Server) ingest(c *gin.Context) {
	var doc *ingestion.Document
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		loaded, err := s.loadUpload(c)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, "invalid_upload", err.Error())
			return
		}
		doc = loaded
	} else {
		var req IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, "invalid_input", err.Error())
			return
		}
		doc = ingestion.NewTextDocument(core.ResourceID(req.ID), req.Name, req.Text)
	}

	result, err := s.ingester.Ingest(c.Request.Context(), doc)
	if err != nil {
		s.logger.Error("error ingesting document", "resource", doc.ResourceID, "err", err)
		respondWithError(c, statusFor(err), errorCode(err), err.Error())
		return
	}

	c.JSON(http.StatusCreated, IngestResponse{
		ID:       string(result.ResourceID),
		Name:     result.Name,
		Chunks:   result.Chunks,
		Replaced: result.Replaced,
	})
}

func (s *Server) loadUpload(c *gin.Context) (*ingestion.Document, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	header, err := c.FormFile("file")
	if err != nil {
		return nil, err
	}
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	doc, err := ingestion.LoadReader(file, header.Size, filepath.Base(header.Filename), core.ResourceID(c.PostForm("id")))
	if err != nil {
		return nil, err
	}
	if name := c.PostForm("name"); name != "" {
		doc.Name = name
	}
	return doc, nil
}

func (s *Server) deleteResource(c *gin.Context) {
	id := core.ResourceID(c.Param("id"))
	if err := s.service.DeleteResource(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, "not_found", "resource not found")
			return
		}
		s.logger.Error("error deleting resource", "resource", id, "err", err)
		respondWithError(c, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func respondWithError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorBody{ErrorCode: code, Message: message})
}

// statusFor maps an error to an HTTP status: 400 for invalid input, 502 for
// embedding provider failures and 500 for everything else.
func statusFor(err error) int {
	switch {
	case isInvalid(err):
		return http.StatusBadRequest
	case errors.Is(err, ai.ErrEmbeddingProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch statusFor(err) {
	case http.StatusBadRequest:
		return "invalid_input"
	case http.StatusBadGateway:
		return "provider_error"
	default:
		return "internal_error"
	}
}

func isInvalid(err error) bool {
	for _, target := range []error{
		core.ErrInvalidRequest,
		core.ErrInvalidResource,
		core.ErrEmptyQuestion,
		core.ErrEmptyResourceID,
		ingestion.ErrEmptyDocument,
		ingestion.ErrUnsupportedFormat,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
