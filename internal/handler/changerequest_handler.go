package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"siteops/internal/model"
	"siteops/internal/scheduling"
)

type ChangeRequestHandler struct {
	svc    *scheduling.Service
	logger *zap.Logger
}

func NewChangeRequestHandler(svc *scheduling.Service, logger *zap.Logger) *ChangeRequestHandler {
	return &ChangeRequestHandler{svc: svc, logger: logger}
}

type createRequestBody struct {
	Type      string `json:"type"`
	Magnitude int    `json:"magnitude"`
	Reason    string `json:"reason"`
}

func (h *ChangeRequestHandler) Create(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req createRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	cr, err := h.svc.CreateChangeRequest(c.Request.Context(), id, model.RequestType(req.Type), req.Magnitude, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"change_request": cr})
}

type resolveRequestBody struct {
	Decision string `json:"decision"`
}

func (h *ChangeRequestHandler) Resolve(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	requestID, err := strconv.ParseInt(c.Param("requestId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	var req resolveRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	cr, err := h.svc.ResolveChangeRequest(c.Request.Context(), id, requestID, model.RequestStatus(req.Decision))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"change_request": cr})
}
