package attendance

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ECMS-backend/internal/platform/auth"
)

type Handler struct {
	svc *Service
	rec *Reconciler
}

func RegisterRoutes(r gin.IRoutes, svc *Service, rec *Reconciler) {
	h := &Handler{svc: svc, rec: rec}

	r.POST("/attendance/check-in", h.CheckIn)
	r.PUT("/attendance/:id/check-out", h.CheckOut)
	r.PUT("/attendance/:id/transfer", h.Transfer)
	r.DELETE("/attendance/:id", h.Delete)

	r.GET("/attendance", h.List)
	r.GET("/attendance/:id", h.Get)
	r.GET("/attendance/current", h.Current)
	r.GET("/attendance/transfers", h.Transfers)
	r.GET("/attendance/summary/center/:id", h.Summary)
	r.GET("/attendance/history/individual/:id", h.History)

	r.POST("/attendance/recalculate/center/:id", h.Recalculate)
	r.POST("/attendance/recalculate/all", h.RecalculateAll)
}

// ---------- handlers ----------

func (h *Handler) CheckIn(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	if req.RecordedBy == nil || *req.RecordedBy == "" {
		if caller := auth.CallerID(c); caller != "" {
			req.RecordedBy = &caller
		}
	}

	res, err := h.svc.CheckIn(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) CheckOut(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req CheckOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}

	res, err := h.svc.CheckOut(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Transfer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	if req.RecordedBy == nil || *req.RecordedBy == "" {
		if caller := auth.CallerID(c); caller != "" {
			req.RecordedBy = &caller
		}
	}

	res, err := h.svc.Transfer(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteRecord(c.Request.Context(), id); err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) List(c *gin.Context) {
	q := ListQuery{
		SortBy:    c.DefaultQuery("sort_by", DefaultSort),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}
	var bad bool
	q.CenterID = queryID(c, "center_id", &bad)
	q.IndividualID = queryID(c, "individual_id", &bad)
	q.EventID = queryID(c, "event_id", &bad)
	q.HouseholdID = queryID(c, "household_id", &bad)
	if bad {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid id filter"))
		return
	}
	if v := c.Query("status"); v != "" {
		q.Status = &v
	}
	if v := c.Query("date"); v != "" {
		q.Date = &v
	}
	if v := c.Query("search"); v != "" {
		q.Search = &v
	}

	page, limit, ok := pageParams(c)
	if !ok {
		return
	}
	q.Page, q.Limit = page, limit

	res, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Current(c *gin.Context) {
	var bad bool
	centerID := queryID(c, "center_id", &bad)
	if bad {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid center_id"))
		return
	}

	res, err := h.svc.Current(c.Request.Context(), centerID)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": res})
}

func (h *Handler) Transfers(c *gin.Context) {
	q := TransferListQuery{
		SortBy:    c.DefaultQuery("sort_by", SortTransferTime),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}
	var bad bool
	q.CenterID = queryID(c, "center_id", &bad)
	if bad {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid center_id"))
		return
	}

	page, limit, ok := pageParams(c)
	if !ok {
		return
	}
	q.Page, q.Limit = page, limit

	res, err := h.svc.Transfers(c.Request.Context(), q)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Summary(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var bad bool
	eventID := queryID(c, "event_id", &bad)
	if bad {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid event_id"))
		return
	}

	res, err := h.svc.SummaryByCenter(c.Request.Context(), id, eventID)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) History(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.svc.History(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": res})
}

func (h *Handler) Recalculate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.rec.Recalculate(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) RecalculateAll(c *gin.Context) {
	res, err := h.rec.RecalculateAll(c.Request.Context())
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": res})
}

// ---------- helpers ----------

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid id"))
		return 0, false
	}
	return id, true
}

func queryID(c *gin.Context, name string, bad *bool) *int64 {
	v := c.Query(name)
	if v == "" {
		return nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		*bad = true
		return nil
	}
	return &id
}

func pageParams(c *gin.Context) (page, limit int, ok bool) {
	page, limit = 1, DefaultPageLimit
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid pagination"))
			return 0, 0, false
		}
		page = n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxPageLimit {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid pagination"))
			return 0, 0, false
		}
		limit = n
	}
	return page, limit, true
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func errorFromErr(err error) errorDTO {
	var msg string
	code := CodeInternal
	if api, ok := err.(*APIError); ok {
		code, msg = api.Code, api.Message
	} else {
		msg = err.Error()
	}
	return errorBody(code, msg)
}
