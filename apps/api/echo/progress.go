package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/progress"
	"github.com/darasahq/darasa/core/user"
)

type progressApi struct {
	svc     *progress.Service
	userSvc user.ServiceInterface
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := progressApi{
		svc:     deps.ProgressSvc,
		userSvc: deps.UserSvc,
	}

	cg := g.Group("/courses/:id", jwt)
	cg.POST("/lessons/:itemID/complete", api.completeLesson)
	cg.POST("/activities/:itemID/submit", api.submitActivity)
	cg.GET("/progress", api.summary)
	cg.DELETE("/items/:itemID/progress", api.unmark)
}

// Handlers

func (api *progressApi) completeLesson(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.MarkLessonComplete(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("itemID"))
	if err != nil {
		return mapProgressErr(err)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *progressApi) submitActivity(ctx echo.Context) error {
	var data progress.SubmitActivityRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitActivityRequest")
	}

	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.SubmitActivity(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("itemID"), data.Answers)
	if err != nil {
		return mapProgressErr(err)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *progressApi) summary(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sum, err := api.svc.Progress(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return mapProgressErr(err)
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *progressApi) unmark(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.Unmark(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("itemID")); err != nil {
		return mapProgressErr(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func mapProgressErr(err error) error {
	switch errors.Cause(err) {
	case course.ErrNotFound, course.ErrItemNotFound, progress.ErrNotFound:
		return errHttpNotFound
	}
	return err
}
