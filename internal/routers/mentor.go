package routers

import (
	"net/http"

	"mentor-api/internal/ctx"
	"mentor-api/internal/handlers/mentor"
	"mentor-api/internal/shared"

	"github.com/labstack/echo/v4"
)

type MentorRouter struct {
	mh *mentor.MentorHandler
}

func RegisterMentorRoutes(e *echo.Group, mh *mentor.MentorHandler) {
	mr := &MentorRouter{mh: mh}

	e.GET("/variants", mr.ListVariants)
	e.POST("/process-text", mr.ProcessText)
	e.POST("/feature-extraction", mr.FeatureExtraction)
	e.POST("/generate-title", mr.GenerateTitle)
	e.POST("/generate-tags", mr.GenerateTags)
	e.POST("/weekly-summary", mr.WeeklySummary)
}

type VariantList struct {
	Data []string `json:"data"`
}

func (mr *MentorRouter) ListVariants(cc echo.Context) error {
	c := cc.(*ctx.Context)
	names, err := mr.mh.ListVariants(c.Request().Context())
	if err != nil {
		c.LogValues.AddError(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list variants"})
	}
	return c.JSON(http.StatusOK, VariantList{Data: names})
}

func (mr *MentorRouter) ProcessText(cc echo.Context) error {
	c := cc.(*ctx.Context)
	var req shared.ProcessTextBody
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	c.LogValues.Variant = req.Variant

	out, err := mr.mh.ProcessText(c.Request().Context(), mentor.ProcessTextInput{
		InputText: req.InputText,
		Variant:   req.Variant,
	})
	return envelope(c, "process-text", shared.SuccessEnvelope(out), err)
}

func (mr *MentorRouter) FeatureExtraction(cc echo.Context) error {
	c := cc.(*ctx.Context)
	var req shared.FeatureExtractionBody
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}

	out, err := mr.mh.FeatureExtraction(c.Request().Context(), req.UserMessages)
	if err != nil {
		return envelope(c, "feature-extraction", nil, err)
	}
	return envelope(c, "feature-extraction", shared.TagEnvelope{
		Status:   shared.StatusSuccess,
		Response: out.Raw,
		Tags:     out.Tags,
	}, nil)
}

func (mr *MentorRouter) GenerateTitle(cc echo.Context) error {
	c := cc.(*ctx.Context)
	var req shared.TranscriptBody
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}

	title, err := mr.mh.GenerateTitle(c.Request().Context(), req.Input)
	return envelope(c, "generate-title", shared.SuccessEnvelope(title), err)
}

// GenerateTags answers with a bare tag list. Failures are logged and produce
// an empty list.
func (mr *MentorRouter) GenerateTags(cc echo.Context) error {
	c := cc.(*ctx.Context)
	var req shared.TranscriptBody
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}

	tags, err := mr.mh.GenerateTags(c.Request().Context(), req.Input)
	if err != nil {
		c.LogValues.AddError(err)
		c.LogValues.ErrorKind = shared.ErrorKind(err)
		c.LogValues.LogLevel = "WARN"
		c.Log.Warnw("Failed to generate tags", "error", err.Error())
		tags = []string{}
	}
	return c.JSON(http.StatusOK, shared.TagsResponse{Tags: tags})
}

func (mr *MentorRouter) WeeklySummary(cc echo.Context) error {
	c := cc.(*ctx.Context)
	var req shared.WeeklySummaryBody
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}

	summary, err := mr.mh.WeeklySummary(c.Request().Context(), req.Sessions)
	return envelope(c, "weekly-summary", shared.SuccessEnvelope(summary), err)
}
