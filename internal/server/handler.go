package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qudata/memcheck/internal/domain"
)

// Commander runs self-test commands. Satisfied by *selftest.Dispatcher.
type Commander interface {
	Handle(ctx context.Context, cmd byte, out io.Writer) error
	State() domain.State
}

// HardwareSource reports device facts. Satisfied by *system.Probe.
type HardwareSource interface {
	Info() domain.HardwareInfo
}

type response struct {
	Ok    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type commandResponse struct {
	Output string       `json:"output"`
	State  domain.State `json:"state"`
}

type API struct {
	commands Commander
	hardware HardwareSource
	logger   *slog.Logger
}

func NewAPI(commands Commander, hardware HardwareSource, logger *slog.Logger) *API {
	return &API{commands: commands, hardware: hardware, logger: logger}
}

func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/ping", a.ping)
	router.GET("/hardware", a.hardwareInfo)
	router.GET("/results", a.results)
	router.POST("/commands/:cmd", a.runCommand)
}

func (a *API) ping(c *gin.Context) {
	c.JSON(http.StatusOK, response{Ok: true})
}

func (a *API) hardwareInfo(c *gin.Context) {
	c.JSON(http.StatusOK, response{Ok: true, Data: a.hardware.Info()})
}

func (a *API) results(c *gin.Context) {
	state := a.commands.State()
	c.Set(runIDKey, state.RunID)
	c.JSON(http.StatusOK, response{Ok: true, Data: state})
}

// runCommand executes a single-character command and returns the console
// text it produced together with the resulting state.
func (a *API) runCommand(c *gin.Context) {
	cmd := c.Param("cmd")
	if len(cmd) != 1 {
		c.JSON(http.StatusBadRequest, response{Ok: false, Error: "command must be a single character"})
		return
	}

	var out bytes.Buffer
	err := a.commands.Handle(c.Request.Context(), cmd[0], &out)

	var unknown domain.ErrUnknownCommand
	switch {
	case errors.As(err, &unknown):
		a.logger.Warn("unknown command over http", "cmd", cmd)
		c.JSON(http.StatusBadRequest, response{Ok: false, Error: out.String()})
		return
	case err != nil:
		a.logger.Error("command failed", "cmd", cmd, "err", err)
		c.JSON(http.StatusInternalServerError, response{Ok: false, Error: err.Error()})
		return
	}

	state := a.commands.State()
	c.Set(runIDKey, state.RunID)
	c.JSON(http.StatusOK, response{
		Ok:   true,
		Data: commandResponse{Output: out.String(), State: state},
	})
}
