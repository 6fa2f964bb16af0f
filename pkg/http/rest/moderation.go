package rest

import (
	"errors"
	"net/http"

	"github.com/cloudgroundcontrol/livekit-moderation/pkg/moderation"
	"github.com/cloudgroundcontrol/livekit-moderation/pkg/session"
	"github.com/labstack/echo/v4"
)

type moderationController struct {
	moderation.Service
}

type StartModerationRequest struct {
	Room string `json:"room"`
}

type RestrictedModeRequest struct {
	Room        string `json:"room"`
	RequestedBy string `json:"requested_by"`
	Enabled     bool   `json:"enabled"`
}

type UnmuteRequest struct {
	Room        string `json:"room"`
	Participant string `json:"participant"`
}

type UnmuteResponse struct {
	Granted bool `json:"granted"`
}

type HandRequest struct {
	Room        string `json:"room"`
	Participant string `json:"participant"`
}

type ApprovalRequest struct {
	Room        string `json:"room"`
	Participant string `json:"participant"`
	Kind        string `json:"kind"`
	Approved    bool   `json:"approved"`
}

type MuteAllRequest struct {
	Room    string   `json:"room"`
	Exclude []string `json:"exclude"`
}

func NewModerationController(service moderation.Service) moderationController {
	return moderationController{service}
}

var ErrEmptyFields = errors.New("one or more fields is empty")

func (mc *moderationController) StartModeration(c echo.Context) error {
	// Bind request data
	data := new(StartModerationRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	// Sanitise request
	if data.Room == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	// Call service
	if err := mc.Service.StartModeration(c.Request().Context(), data.Room); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	// Return success
	return c.NoContent(http.StatusOK)
}

func (mc *moderationController) StopModeration(c echo.Context) error {
	data := new(StartModerationRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if data.Room == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}
	mc.Service.StopModeration(data.Room)
	return c.NoContent(http.StatusOK)
}

func (mc *moderationController) SetRestrictedMode(c echo.Context) error {
	data := new(RestrictedModeRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if data.Room == "" || data.RequestedBy == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	err := mc.Service.ToggleRestrictedMode(c.Request().Context(), data.Room, data.RequestedBy, data.Enabled)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusOK)
}

func (mc *moderationController) RequestUnmute(c echo.Context) error {
	data := new(UnmuteRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if data.Room == "" || data.Participant == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	// Rejections are part of the protocol, not errors: the response says
	// whether the floor was granted either way.
	granted, err := mc.Service.RequestUnmute(c.Request().Context(), data.Room, data.Participant)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, UnmuteResponse{Granted: granted})
}

func (mc *moderationController) RaiseHand(c echo.Context) error {
	data := new(HandRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if data.Room == "" || data.Participant == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	if err := mc.Service.RaiseHand(c.Request().Context(), data.Room, data.Participant); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusOK)
}

func (mc *moderationController) LowerHand(c echo.Context) error {
	data := new(HandRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if data.Room == "" || data.Participant == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	if err := mc.Service.LowerHand(c.Request().Context(), data.Room, data.Participant); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusOK)
}

func (mc *moderationController) SetApproval(c echo.Context) error {
	data := new(ApprovalRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if data.Room == "" || data.Participant == "" || data.Kind == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	kind, err := ParseMediaKind(data.Kind)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	err = mc.Service.SetApproval(c.Request().Context(), data.Room, data.Participant, kind, data.Approved)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusOK)
}

func (mc *moderationController) MuteAll(c echo.Context) error {
	data := new(MuteAllRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if data.Room == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	if err := mc.Service.MuteAll(c.Request().Context(), data.Room, data.Exclude); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusOK)
}

func (mc *moderationController) Status(c echo.Context) error {
	room := c.QueryParam("room")
	if room == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	status, err := mc.Service.Status(room)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err)
	}
	return c.JSON(http.StatusOK, status)
}

var ErrUnknownMediaKind = errors.New("unknown media kind")

func ParseMediaKind(k string) (session.MediaKind, error) {
	switch k {
	case string(session.MediaAudio):
		return session.MediaAudio, nil
	case string(session.MediaVideo):
		return session.MediaVideo, nil
	default:
		return "", ErrUnknownMediaKind
	}
}
