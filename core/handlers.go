package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"calendar-service/pkg/auth"
)

type Handlers interface {
	PostEvents(gctx *gin.Context)
	GetEvents(gctx *gin.Context)
	GetEventById(gctx *gin.Context)
	PutEvents(gctx *gin.Context)
	DeleteEvents(gctx *gin.Context)
	PostCancelOccurrence(gctx *gin.Context)
}

type handlers struct {
	repository Repository
}

func NewHandlers(repository Repository) Handlers {
	return &handlers{repository: repository}
}

// PostEvents creates an event for the caller, with its recurrence rule
// when one is supplied. Event and rule persist as one unit.
func (h *handlers) PostEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var request EventRequest

	err := gctx.ShouldBindJSON(&request)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))

		return
	}

	event, err := h.buildEvent(gctx, request)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("event validation failed")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("event validation failed", err))

		return
	}

	savedEvent, err := h.repository.SaveEvent(ctx, event)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("saving event failed")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("saving event failed", err))

		return
	}

	gctx.JSON(http.StatusCreated, savedEvent)
}

// GetEvents lists the caller's events.
func (h *handlers) GetEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	events, err := h.repository.ListEvents(ctx, auth.UserId(gctx))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("listing events failed")
		gctx.AbortWithStatusJSON(http.StatusInternalServerError, NewError("listing events failed", err))

		return
	}

	gctx.JSON(http.StatusOK, events)
}

func (h *handlers) GetEventById(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id := gctx.Param("id")
	if len(id) == 0 {
		log.Ctx(ctx).Error().Msg("parameter 'id' is required")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("parameter 'id' is required"))

		return
	}

	event, err := h.repository.GetEventById(ctx, auth.UserId(gctx), id)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			log.Ctx(ctx).Info().Msg("event not found")
			gctx.AbortWithStatusJSON(http.StatusNotFound, NewError("event not found", err))

			return
		}

		log.Ctx(ctx).Error().Err(err).Msg("getting event failed")
		gctx.AbortWithStatusJSON(http.StatusInternalServerError, NewError("getting event failed", err))

		return
	}

	gctx.JSON(http.StatusOK, event)
}

// PutEvents replaces the event's fields. A recurrence_rule key in the body
// replaces (or creates) the stored rule after full re-validation; omitting
// the key removes any stored rule. Exceptions survive either way.
func (h *handlers) PutEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id := gctx.Param("id")
	if len(id) == 0 {
		log.Ctx(ctx).Error().Msg("parameter 'id' is required")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("parameter 'id' is required"))

		return
	}

	var request EventRequest

	err := gctx.ShouldBindJSON(&request)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))

		return
	}

	event, err := h.buildEvent(gctx, request)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("event validation failed")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("event validation failed", err))

		return
	}

	event.Id = id

	updatedEvent, err := h.repository.UpdateEvent(ctx, event)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			log.Ctx(ctx).Info().Msg("event not found")
			gctx.AbortWithStatusJSON(http.StatusNotFound, NewError("event not found", err))

			return
		}

		log.Ctx(ctx).Error().Err(err).Msg("updating event failed")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("updating event failed", err))

		return
	}

	gctx.JSON(http.StatusOK, updatedEvent)
}

func (h *handlers) DeleteEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id := gctx.Param("id")
	if len(id) == 0 {
		log.Ctx(ctx).Error().Msg("parameter 'id' is required")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("parameter 'id' is required"))

		return
	}

	err := h.repository.DeleteEvent(ctx, auth.UserId(gctx), id)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			log.Ctx(ctx).Info().Msg("event not found")
			gctx.AbortWithStatusJSON(http.StatusNotFound, NewError("event not found", err))

			return
		}

		log.Ctx(ctx).Error().Err(err).Msg("deleting event failed")
		gctx.AbortWithStatusJSON(http.StatusInternalServerError, NewError("deleting event failed", err))

		return
	}

	gctx.Status(http.StatusNoContent)
}

// PostCancelOccurrence cancels a single occurrence date of a recurring
// event. Idempotent: repeating the call returns the same exception record.
func (h *handlers) PostCancelOccurrence(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id := gctx.Param("id")
	if len(id) == 0 {
		log.Ctx(ctx).Error().Msg("parameter 'id' is required")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("parameter 'id' is required"))

		return
	}

	var request CancelOccurrenceRequest

	err := gctx.ShouldBindJSON(&request)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))

		return
	}

	if request.OccurrenceDate == "" {
		log.Ctx(ctx).Error().Msg("occurrence_date is required")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("occurrence_date is required"))

		return
	}

	occurrenceDate, err := time.Parse(time.DateOnly, request.OccurrenceDate)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("invalid occurrence date")
		gctx.AbortWithStatusJSON(http.StatusBadRequest,
			NewError("invalid date format, use YYYY-MM-DD", NewValidationError("invalid occurrence_date '%s'", request.OccurrenceDate)))

		return
	}

	exception, err := h.repository.CancelOccurrence(ctx, auth.UserId(gctx), id, occurrenceDate)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			log.Ctx(ctx).Info().Msg("event not found")
			gctx.AbortWithStatusJSON(http.StatusNotFound, NewError("event not found", err))

			return
		}

		if errors.Is(err, ErrConflict) {
			log.Ctx(ctx).Warn().Msg("concurrent cancellation conflict")
			gctx.AbortWithStatusJSON(http.StatusConflict, NewError("concurrent cancellation conflict", err))

			return
		}

		log.Ctx(ctx).Error().Err(err).Msg("cancelling occurrence failed")
		gctx.AbortWithStatusJSON(http.StatusInternalServerError, NewError("cancelling occurrence failed", err))

		return
	}

	gctx.JSON(http.StatusCreated, exception)
}

// buildEvent validates the request and decodes the optional rule payload.
// The raw rule key keeps absent and null distinguishable: absent means no
// rule (and, on update, removal of the stored one), null is rejected.
func (h *handlers) buildEvent(gctx *gin.Context, request EventRequest) (*Event, error) {
	event := &Event{
		UserId:        auth.UserId(gctx),
		Title:         request.Title,
		Description:   request.Description,
		StartDatetime: request.StartDatetime,
		EndDatetime:   request.EndDatetime,
		IsRecurring:   request.IsRecurring,
	}

	err := ValidateEvent(*event)
	if err != nil {
		return nil, err
	}

	if len(request.RecurrenceRule) == 0 {
		return event, nil
	}

	if bytes.Equal(bytes.TrimSpace(request.RecurrenceRule), []byte("null")) {
		return nil, NewValidationError("recurrence_rule may not be null")
	}

	var payload RulePayload

	err = json.Unmarshal(request.RecurrenceRule, &payload)
	if err != nil {
		return nil, NewValidationError("recurrence_rule is not a valid object")
	}

	rule, err := ValidateAndBuildRule(payload)
	if err != nil {
		return nil, err
	}

	event.RecurrenceRule = rule

	return event, nil
}
