package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gamepub/internal/domain/qcreport"
	"gamepub/internal/domain/version"
	"gamepub/internal/errs"
	"gamepub/internal/usecase/versions"
)

type registerGameRequest struct {
	GameID string `json:"gameId" binding:"required"`
	Title  string `json:"title"`
}

type createVersionRequest struct {
	Version string `json:"version" binding:"required"`
}

type metadataPatchRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Grade       *string  `json:"grade"`
	Subject     *string  `json:"subject"`
	Level       *string  `json:"level"`
	LinkGithub  *string  `json:"linkGithub"`
	Skills      []string `json:"skills"`
	Themes      []string `json:"themes"`
}

type transitionRequest struct {
	Action string `json:"action" binding:"required"`
	Note   string `json:"note"`
}

type qcReportRequest struct {
	Results    qcreport.SubResults `json:"results"`
	AutoDecide bool                `json:"autoDecide"`
}

func (s *Server) listGames(c *gin.Context) {
	games, err := s.versions.ListGames(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games})
}

func (s *Server) registerGame(c *gin.Context) {
	var req registerGameRequest
	if !bindJSON(c, &req) {
		return
	}
	game, err := s.versions.RegisterGame(c.Request.Context(), versions.RegisterGameInput{
		GameID: req.GameID,
		Title:  req.Title,
		Actor:  actorFrom(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, game)
}

func (s *Server) getGame(c *gin.Context) {
	game, err := s.versions.GetGame(c.Request.Context(), pathParam(c, "gameId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

func (s *Server) listVersions(c *gin.Context) {
	items, err := s.versions.ListVersions(c.Request.Context(), pathParam(c, "gameId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": items})
}

func (s *Server) createVersion(c *gin.Context) {
	var req createVersionRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := s.versions.CreateVersion(c.Request.Context(), versions.CreateVersionInput{
		GameID:  pathParam(c, "gameId"),
		Version: req.Version,
		Actor:   actorFrom(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (s *Server) getVersion(c *gin.Context) {
	v, err := s.versions.GetVersion(c.Request.Context(), pathParam(c, "id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) editMetadata(c *gin.Context) {
	var req metadataPatchRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := s.versions.EditMetadata(c.Request.Context(), pathParam(c, "id"), actorFrom(c), versions.MetadataPatch{
		Title:       req.Title,
		Description: req.Description,
		Grade:       req.Grade,
		Subject:     req.Subject,
		Level:       req.Level,
		LinkGithub:  req.LinkGithub,
		Skills:      req.Skills,
		Themes:      req.Themes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) updateSelfQA(c *gin.Context) {
	var checklist version.SelfQAChecklist
	if !bindJSON(c, &checklist) {
		return
	}
	v, err := s.versions.UpdateSelfQA(c.Request.Context(), pathParam(c, "id"), actorFrom(c), checklist)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) availableActions(c *gin.Context) {
	actions, err := s.versions.AvailableActions(c.Request.Context(), pathParam(c, "id"), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions})
}

func (s *Server) transition(c *gin.Context) {
	var req transitionRequest
	if !bindJSON(c, &req) {
		return
	}
	action, err := version.ParseAction(req.Action)
	if err != nil {
		writeError(c, err)
		return
	}
	result, err := s.versions.Transition(c.Request.Context(), versions.TransitionInput{
		VersionID: pathParam(c, "id"),
		Action:    action,
		Actor:     actorFrom(c),
		Note:      req.Note,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) history(c *gin.Context) {
	items, err := s.versions.History(c.Request.Context(), pathParam(c, "id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": items})
}

func (s *Server) listQCReports(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(c, errs.New(errs.KindValidation, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	items, err := s.versions.ListQCReports(c.Request.Context(), pathParam(c, "id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": items})
}

func (s *Server) recordQCReport(c *gin.Context) {
	var req qcReportRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := s.versions.RecordQCReport(c.Request.Context(), versions.RecordQCReportInput{
		VersionID:  pathParam(c, "id"),
		Actor:      actorFrom(c),
		Results:    req.Results,
		AutoDecide: req.AutoDecide,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
