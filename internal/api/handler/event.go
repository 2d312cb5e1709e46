package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-event-catalog/internal/api"
	"github.com/sanosuguru/go-event-catalog/internal/domain/event"
)

type EventHandler struct {
	eventService EventServiceInterface
}

func NewEventHandler(eventService EventServiceInterface) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// EventRequest は作成・置き換え時のリクエスト
type EventRequest struct {
	Name            string           `json:"event_name" validate:"max=255" example:"東京ドームコンサート2026"`
	Tags            []string         `json:"tags" validate:"omitempty,dive,max=64" example:"music,live"`
	TicketPrice     *decimal.Decimal `json:"ticket_price" example:"5500.00"`
	EventDateTime   *time.Time       `json:"event_date_time" example:"2026-12-31T18:00:00+09:00"`
	DurationMinutes int              `json:"duration_minutes" validate:"gte=0" example:"180"`
}

func (r *EventRequest) toEntity() *event.Event {
	return &event.Event{
		Name:            r.Name,
		Tags:            r.Tags,
		TicketPrice:     r.TicketPrice,
		EventDateTime:   r.EventDateTime,
		DurationMinutes: r.DurationMinutes,
	}
}

// PatchEventRequest は部分更新のリクエスト
// 省略したフィールド、空のタグ、0 以下の所要時間は変更しない
type PatchEventRequest struct {
	Name            *string          `json:"event_name" validate:"omitempty,max=255"`
	Tags            []string         `json:"tags" validate:"omitempty,dive,max=64"`
	TicketPrice     *decimal.Decimal `json:"ticket_price"`
	EventDateTime   *time.Time       `json:"event_date_time"`
	DurationMinutes int              `json:"duration_minutes"`
}

func (r *PatchEventRequest) toPatch() event.Patch {
	return event.Patch{
		Name:            r.Name,
		Tags:            r.Tags,
		TicketPrice:     r.TicketPrice,
		EventDateTime:   r.EventDateTime,
		DurationMinutes: r.DurationMinutes,
	}
}

type UpdatePriceRequest struct {
	TicketPrice *decimal.Decimal `json:"ticket_price" validate:"required" example:"4800.00"`
}

type EventResponse struct {
	ID              string           `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name            string           `json:"event_name" example:"東京ドームコンサート2026"`
	Tags            []string         `json:"tags"`
	TicketPrice     *decimal.Decimal `json:"ticket_price" example:"5500"`
	EventDateTime   *string          `json:"event_date_time" example:"2026-12-31T18:00:00+09:00"` // RFC3339Nano
	DurationMinutes int              `json:"duration_minutes" example:"180"`
	CreatedAt       string           `json:"created_at" example:"2026-10-01T10:00:00Z"`
	UpdatedAt       string           `json:"updated_at" example:"2026-10-01T10:00:00Z"`
}

func toEventResponse(e *event.Event) *EventResponse {
	resp := &EventResponse{
		ID:              e.ID.String(),
		Name:            e.Name,
		Tags:            e.Tags,
		TicketPrice:     e.TicketPrice,
		DurationMinutes: e.DurationMinutes,
		CreatedAt:       e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       e.UpdatedAt.Format(time.RFC3339),
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if e.EventDateTime != nil {
		s := e.EventDateTime.Format(time.RFC3339Nano)
		resp.EventDateTime = &s
	}
	return resp
}

func toEventResponses(events []*event.Event) []*EventResponse {
	responses := make([]*EventResponse, len(events))
	for i, e := range events {
		responses[i] = toEventResponse(e)
	}
	return responses
}

// Create godoc
// @Summary イベントを作成
// @Tags events
// @Accept json
// @Produce json
// @Param request body EventRequest true "イベント情報"
// @Success 201 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /events [post]
func (h *EventHandler) Create(c echo.Context) error {
	var req EventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	e, err := h.eventService.CreateEvent(c.Request().Context(), req.toEntity())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toEventResponse(e))
}

// GetByID godoc
// @Summary イベントを取得
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [get]
func (h *EventHandler) GetByID(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	e, err := h.eventService.GetEvent(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// List godoc
// @Summary イベント一覧を取得
// @Tags events
// @Produce json
// @Success 200 {array} EventResponse
// @Router /events [get]
func (h *EventHandler) List(c echo.Context) error {
	events, err := h.eventService.ListEvents(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toEventResponses(events))
}

// Update godoc
// @Summary イベントを置き換え
// @Description 指定IDのイベントをリクエストの内容で丸ごと置き換えます
// @Tags events
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body EventRequest true "イベント情報"
// @Success 200 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [put]
func (h *EventHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req EventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	e, err := h.eventService.UpdateEvent(c.Request().Context(), id, req.toEntity())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// Patch godoc
// @Summary イベントを部分更新
// @Tags events
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body PatchEventRequest true "更新するフィールド"
// @Success 200 {object} EventResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [patch]
func (h *EventHandler) Patch(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req PatchEventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	e, err := h.eventService.PatchEvent(c.Request().Context(), id, req.toPatch())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// UpdatePrice godoc
// @Summary チケット価格を更新
// @Tags events
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body UpdatePriceRequest true "新しい価格"
// @Success 200 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id}/price [patch]
func (h *EventHandler) UpdatePrice(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req UpdatePriceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	e, err := h.eventService.UpdateEventPrice(c.Request().Context(), id, *req.TicketPrice)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// Delete godoc
// @Summary イベントを削除
// @Tags events
// @Param id path string true "イベントID"
// @Success 204
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.eventService.DeleteEvent(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ByTag godoc
// @Summary タグでイベントを検索
// @Description 大文字小文字を区別せず完全一致で検索します
// @Tags events
// @Produce json
// @Param tag query string true "タグ"
// @Success 200 {array} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /events/filter/tag [get]
func (h *EventHandler) ByTag(c echo.Context) error {
	events, err := h.eventService.GetEventsByTag(c.Request().Context(), c.QueryParam("tag"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toEventResponses(events))
}

// Upcoming godoc
// @Summary 今後のイベントを取得
// @Description 開催日時の昇順で返します
// @Tags events
// @Produce json
// @Success 200 {array} EventResponse
// @Router /events/filter/upcoming [get]
func (h *EventHandler) Upcoming(c echo.Context) error {
	events, err := h.eventService.GetUpcomingEvents(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toEventResponses(events))
}

// ByPriceRange godoc
// @Summary 価格帯でイベントを検索
// @Tags events
// @Produce json
// @Param min query string true "下限（含む）"
// @Param max query string true "上限（含む）"
// @Success 200 {array} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /events/filter/price [get]
func (h *EventHandler) ByPriceRange(c echo.Context) error {
	minPrice, err := parseDecimalQuery(c, "min")
	if err != nil {
		return err
	}
	maxPrice, err := parseDecimalQuery(c, "max")
	if err != nil {
		return err
	}

	events, err := h.eventService.GetEventsByPriceRange(c.Request().Context(), minPrice, maxPrice)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toEventResponses(events))
}

// ByDateRange godoc
// @Summary 開催日時の範囲でイベントを検索
// @Tags events
// @Produce json
// @Param start query string true "開始（RFC3339、含む）"
// @Param end query string true "終了（RFC3339、含む）"
// @Success 200 {array} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /events/filter/date [get]
func (h *EventHandler) ByDateRange(c echo.Context) error {
	start, err := parseTimeQuery(c, "start")
	if err != nil {
		return err
	}
	end, err := parseTimeQuery(c, "end")
	if err != nil {
		return err
	}

	events, err := h.eventService.GetEventsByDateRange(c.Request().Context(), start, end)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toEventResponses(events))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "イベントIDの形式が不正です")
	}
	return id, nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	return c.Validate(req)
}

// 未指定の場合は nil を返し、範囲チェックはサービスに任せる
func parseDecimalQuery(c echo.Context, name string) (*decimal.Decimal, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, name+" の形式が不正です")
	}
	return &d, nil
}

func parseTimeQuery(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, name+" はRFC3339形式で指定してください")
	}
	return &t, nil
}

func toHTTPError(err error) error {
	code := api.StatusFromError(err)
	if code == http.StatusInternalServerError {
		return echo.NewHTTPError(code, "内部サーバーエラー").SetInternal(err)
	}
	return echo.NewHTTPError(code, err.Error())
}
