package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/ecoregula/permitflow/internal/application/service"
	"github.com/ecoregula/permitflow/internal/domain/entity"
	"github.com/ecoregula/permitflow/internal/domain/fault"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	permitService     service.PermitService
	issuanceService   service.IssuanceService
	complianceService service.ComplianceService
	auditService      service.AuditService
	registerService   service.RegisterExportService
	logger            Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	permitService service.PermitService,
	issuanceService service.IssuanceService,
	complianceService service.ComplianceService,
	auditService service.AuditService,
	registerService service.RegisterExportService,
	logger Logger,
) *Handlers {
	registerValidations()
	return &Handlers{
		permitService:     permitService,
		issuanceService:   issuanceService,
		complianceService: complianceService,
		auditService:      auditService,
		registerService:   registerService,
		logger:            logger,
	}
}

// registerValidations adds domain value validations to gin's binding engine
func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterValidation("actor_role", func(fl validator.FieldLevel) bool {
		return entity.Role(fl.Field().String()).IsValid()
	})
	v.RegisterValidation("frequency", func(fl validator.FieldLevel) bool {
		return entity.Frequency(fl.Field().String()).IsValid()
	})
	v.RegisterValidation("request_type", func(fl validator.FieldLevel) bool {
		t := fl.Field().String()
		return t == entity.RequestTypeImport || t == entity.RequestTypeExport
	})
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// LineItemRequest is one tariff line on a submission payload
type LineItemRequest struct {
	Description string  `json:"description"`
	TariffCode  string  `json:"tariff_code" binding:"required"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
	UnitValue   float64 `json:"unit_value" binding:"gte=0"`
}

// SubmitRequestPayload is the applicant's permit request submission
type SubmitRequestPayload struct {
	ApplicantID int64             `json:"applicant_id" binding:"required"`
	Type        string            `json:"type" binding:"required,request_type"`
	Currency    string            `json:"currency" binding:"required"`
	Items       []LineItemRequest `json:"items" binding:"required,min=1,dive"`
}

// AttachRUPEPayload carries a payment reference and optional proof document
type AttachRUPEPayload struct {
	Reference    string `json:"reference" binding:"required"`
	Document     []byte `json:"document"`
	DocumentName string `json:"document_name"`
}

// ApprovePayload carries the board signer
type ApprovePayload struct {
	SignerName string `json:"signer_name" binding:"required"`
}

// RejectPayload carries the mandatory rejection reason
type RejectPayload struct {
	Reason string `json:"reason" binding:"required"`
}

// CreateConfigurationPayload registers an entity's monitoring setup
type CreateConfigurationPayload struct {
	EntityID  int64     `json:"entity_id" binding:"required"`
	Frequency string    `json:"frequency" binding:"required,frequency"`
	StartDate time.Time `json:"start_date" binding:"required"`
}

// ReportPayload carries an uploaded compliance report
type ReportPayload struct {
	Report     []byte `json:"report" binding:"required"`
	ReportName string `json:"report_name"`
}

// ReopeningPayload carries the reopening justification
type ReopeningPayload struct {
	Reason string `json:"reason" binding:"required"`
}

// OpinionPayload carries the technician's opinion on a submission
type OpinionPayload struct {
	Outcome string `json:"outcome" binding:"required"`
	Note    string `json:"note"`
}

// AssignTechnicianPayload links a technician to a submission
type AssignTechnicianPayload struct {
	TechnicianID   string `json:"technician_id" binding:"required"`
	TechnicianName string `json:"technician_name"`
}

// VisitPayload carries the scheduled field visit date
type VisitPayload struct {
	VisitDate time.Time `json:"visit_date" binding:"required"`
}

// DocumentPayload carries an uploaded document
type DocumentPayload struct {
	Document     []byte `json:"document" binding:"required"`
	DocumentName string `json:"document_name"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// SubmitRequest handles POST /api/requests
func (h *Handlers) SubmitRequest(c *gin.Context) {
	var payload SubmitRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.badRequest(c, err)
		return
	}

	in := service.SubmitRequestInput{
		ApplicantID: payload.ApplicantID,
		Type:        payload.Type,
		Currency:    payload.Currency,
	}
	for _, it := range payload.Items {
		in.Items = append(in.Items, service.LineItemInput{
			Description: it.Description,
			TariffCode:  it.TariffCode,
			Quantity:    it.Quantity,
			UnitValue:   it.UnitValue,
		})
	}

	req, err := h.permitService.Submit(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: req})
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	req, err := h.permitService.GetRequest(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// ListPendingRequests handles GET /api/requests/pending
func (h *Handlers) ListPendingRequests(c *gin.Context) {
	role := entity.Role(c.Query("role"))
	if !role.IsValid() {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown role"})
		return
	}

	limit, offset := pagination(c)
	reqs, err := h.permitService.ListPendingFor(c.Request.Context(), role, limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: reqs})
}

// ValidateAsTechnician handles POST /api/requests/:id/validate-technician
func (h *Handlers) ValidateAsTechnician(c *gin.Context) {
	h.requestTransition(c, h.permitService.ValidateAsTechnician)
}

// ValidateAsChief handles POST /api/requests/:id/validate-chief
func (h *Handlers) ValidateAsChief(c *gin.Context) {
	h.requestTransition(c, h.permitService.ValidateAsChief)
}

// AttachPaymentReference handles POST /api/requests/:id/rupe
func (h *Handlers) AttachPaymentReference(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var payload AttachRUPEPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.badRequest(c, err)
		return
	}

	req, err := h.permitService.AttachPaymentReference(c.Request.Context(), id, payload.Reference, payload.Document, payload.DocumentName)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// ConfirmPaymentSubmitted handles POST /api/requests/:id/payment-submitted
func (h *Handlers) ConfirmPaymentSubmitted(c *gin.Context) {
	h.requestTransition(c, h.permitService.ConfirmPaymentSubmitted)
}

// ValidatePayment handles POST /api/requests/:id/validate-payment
func (h *Handlers) ValidatePayment(c *gin.Context) {
	h.requestTransition(c, h.permitService.ValidatePayment)
}

// ApproveRequest handles POST /api/requests/:id/approve
func (h *Handlers) ApproveRequest(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var payload ApprovePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.badRequest(c, err)
		return
	}

	req, permit, err := h.permitService.Approve(c.Request.Context(), id, payload.SignerName)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"request": req,
		"permit":  permit,
	}})
}

// RejectRequest handles POST /api/requests/:id/reject
func (h *Handlers) RejectRequest(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var payload RejectPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.badRequest(c, err)
		return
	}

	req, err := h.permitService.Reject(c.Request.Context(), id, payload.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// GetPermitForRequest handles GET /api/requests/:id/permit
func (h *Handlers) GetPermitForRequest(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	permit, err := h.issuanceService.GetByRequest(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: permit})
}

// ListPermits handles GET /api/permits
func (h *Handlers) ListPermits(c *gin.Context) {
	year, ok := h.queryYear(c)
	if !ok {
		return
	}

	permits, err := h.issuanceService.ListForYear(c.Request.Context(), year)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: permits})
}

// ExportRegister handles GET /api/permits/register
func (h *Handlers) ExportRegister(c *gin.Context) {
	year, ok := h.queryYear(c)
	if !ok {
		return
	}

	content, err := h.registerService.ExportYear(c.Request.Context(), year)
	if err != nil {
		h.writeError(c, err)
		return
	}

	filename := "permit-register-" + strconv.Itoa(year) + ".xlsx"
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", content)
}

// CreateConfiguration handles POST /api/compliance/configurations
func (h *Handlers) CreateConfiguration(c *gin.Context) {
	var payload CreateConfigurationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.badRequest(c, err)
		return
	}

	cfg, periods, err := h.complianceService.CreateConfiguration(c.Request.Context(), payload.EntityID, entity.Frequency(payload.Frequency), payload.StartDate)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: gin.H{
		"configuration": cfg,
		"periods":       periods,
	}})
}

// GetPeriods handles GET /api/compliance/entities/:id/periods
func (h *Handlers) GetPeriods(c *gin.Context) {
	entityID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	periods, err := h.complianceService.GetPeriodsFor(c.Request.Context(), entityID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: periods})
}

// SubmitReport handles POST /api/compliance/periods/:id/report
func (h *Handlers) SubmitReport(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var payload ReportPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.badRequest(c, err)
		return
	}

	sub, err := h.complianceService.SubmitReport(c.Request.Context(), id, payload.Report, payload.ReportName)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: sub})
}

// RequestReopening handles POST /api/compliance/periods/:id/reopening
func (h *Handlers) RequestReopening(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var payload ReopeningPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.badRequest(c, err)
		return
	}

	period, err := h.complianceService.RequestReopening(c.Request.Context(), id, payload.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: period})
}

// RequireReopeningPayment handles POST /api/compliance/periods/:id/reopening/rupe
func (h *Handlers) RequireReopeningPayment(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var payload AttachRUPEPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.badRequest(c, err)
		return
	}

	period, err := h.complianceService.RequireReopeningPayment(c.Request.Context(), id, payload.Reference, payload.Document, payload.DocumentName)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: period})
}

// ConfirmReopeningPaymentSubmitted handles POST /api/compliance/periods/:id/reopening/payment-submitted
func (h *Handlers) ConfirmReopeningPaymentSubmitted(c *gin.Context) {
	h.periodTransition(c, h.complianceService.ConfirmReopeningPaymentSubmitted)
}

// ValidateReopeningPayment handles POST /api/compliance/periods/:id/reopening/validate-payment
func (h *Handlers) ValidateReopeningPayment(c *gin.Context) {
	h.periodTransition(c, h.complianceService.ValidateReopeningPayment)
}

// GetSubmission handles GET /api/compliance/submissions/:id
func (h *Handlers) GetSubmission(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	sub, err := h.complianceService.GetSubmission(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: sub})
}

// Resubmit handles POST /api/compliance/submissions/:id/resubmit
func (h *Handlers) Resubmit(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var payload ReportPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.badRequest(c, err)
		return
	}

	sub, err := h.complianceService.Resubmit(c.Request.Context(), id, payload.Report, payload.ReportName)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: sub})
}

// RecordOpinion handles POST /api/compliance/submissions/:id/opinion
func (h *Handlers) RecordOpinion(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var payload OpinionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.badRequest(c, err)
		return
	}

	sub, err := h.complianceService.RecordTechnicalOpinion(c.Request.Context(), id, payload.Outcome, payload.Note)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: sub})
}

// AttachSubmissionRUPE handles POST /api/compliance/submissions/:id/rupe
func (h *Handlers) AttachSubmissionRUPE(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var payload AttachRUPEPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.badRequest(c, err)
		return
	}

	sub, err := h.complianceService.AttachSubmissionRUPE(c.Request.Context(), id, payload.Reference, payload.Document, payload.DocumentName)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: sub})
}

// ConfirmSubmissionPaymentSubmitted handles POST /api/compliance/submissions/:id/payment-submitted
func (h *Handlers) ConfirmSubmissionPaymentSubmitted(c *gin.Context) {
	h.submissionTransition(c, h.complianceService.ConfirmSubmissionPaymentSubmitted)
}

// ValidateSubmissionPayment handles POST /api/compliance/submissions/:id/validate-payment
func (h *Handlers) ValidateSubmissionPayment(c *gin.Context) {
	h.submissionTransition(c, h.complianceService.ValidateSubmissionPayment)
}

// AssignTechnician handles POST /api/compliance/submissions/:id/technicians
func (h *Handlers) AssignTechnician(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var payload AssignTechnicianPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.badRequest(c, err)
		return
	}

	if err := h.complianceService.AssignTechnician(c.Request.Context(), id, payload.TechnicianID, payload.TechnicianName); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// ScheduleVisit handles POST /api/compliance/submissions/:id/visit
func (h *Handlers) ScheduleVisit(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var payload VisitPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.badRequest(c, err)
		return
	}

	sub, err := h.complianceService.ScheduleVisit(c.Request.Context(), id, payload.VisitDate)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: sub})
}

// CompleteVisit handles POST /api/compliance/submissions/:id/visit/complete
func (h *Handlers) CompleteVisit(c *gin.Context) {
	h.submissionTransition(c, h.complianceService.CompleteVisit)
}

// AttachFinalDocument handles POST /api/compliance/submissions/:id/final-document
func (h *Handlers) AttachFinalDocument(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var payload DocumentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.badRequest(c, err)
		return
	}

	sub, err := h.complianceService.AttachFinalDocument(c.Request.Context(), id, payload.Document, payload.DocumentName)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: sub})
}

// ListAudit handles GET /api/audit/:kind/:id
func (h *Handlers) ListAudit(c *gin.Context) {
	kind := entity.EntityKind(c.Param("kind"))
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	limit, offset := pagination(c)
	entries, err := h.auditService.ListForEntity(c.Request.Context(), kind, id, limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// requestTransition runs a body-less permit request transition
func (h *Handlers) requestTransition(c *gin.Context, fn func(ctx context.Context, id int64) (*entity.PermitRequest, error)) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	req, err := fn(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// periodTransition runs a body-less compliance period transition
func (h *Handlers) periodTransition(c *gin.Context, fn func(ctx context.Context, id int64) (*entity.CompliancePeriod, error)) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	period, err := fn(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: period})
}

// submissionTransition runs a body-less submission transition
func (h *Handlers) submissionTransition(c *gin.Context, fn func(ctx context.Context, id int64) (*entity.ComplianceSubmission, error)) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	sub, err := fn(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: sub})
}

// pathID parses a numeric path parameter
func (h *Handlers) pathID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.logger.Error("Invalid path id", "param", name, "value", raw)
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid " + name})
		return 0, false
	}
	return id, true
}

// queryYear parses the year query parameter, defaulting to the current year
func (h *Handlers) queryYear(c *gin.Context) (int, bool) {
	raw := c.Query("year")
	if raw == "" {
		return time.Now().Year(), true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1900 || year > 9999 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid year"})
		return 0, false
	}
	return year, true
}

// pagination parses limit/offset query parameters with bounded defaults
func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// badRequest writes a 400 for malformed payloads
func (h *Handlers) badRequest(c *gin.Context, err error) {
	h.logger.Error("Invalid request payload", "error", err)
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request payload: " + err.Error()})
}

// writeError maps a service failure to its HTTP representation. Typed
// business faults carry their kind so clients can branch without parsing
// messages.
func (h *Handlers) writeError(c *gin.Context, err error) {
	f, ok := fault.As(err)
	if !ok {
		h.logger.Error("Unclassified service error", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch f.Kind {
	case fault.KindNotFound:
		status = http.StatusNotFound
	case fault.KindInvalidTransition, fault.KindOutOfOrder, fault.KindDuplicate:
		status = http.StatusConflict
	case fault.KindValidation:
		status = http.StatusUnprocessableEntity
	case fault.KindStorage:
		h.logger.Error("Storage failure", "error", err)
		status = http.StatusBadGateway
	}

	c.JSON(status, Response{Success: false, Error: f.Message, Kind: string(f.Kind)})
}
