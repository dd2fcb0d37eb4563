package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/user"
)

type courseApi struct {
	svc      *course.Service
	userSvc  user.ServiceInterface
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := courseApi{
		svc:      deps.CourseSvc,
		userSvc:  deps.UserSvc,
		validate: deps.Validate,
	}

	cg := g.Group("/courses", jwt)
	cg.POST("", api.create)
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.DELETE("/:id", api.destroy)
	cg.GET("/:id/content", api.content)

	cg.POST("/:id/lists", api.addList)
	cg.PUT("/:id/lists/:listID", api.updateList)
	cg.DELETE("/:id/lists/:listID", api.removeList)
	cg.PUT("/:id/lists/:listID/order", api.reorderList)

	cg.POST("/:id/items", api.addItem)
	cg.PUT("/:id/items/order", api.reorderUnlisted)
	cg.PUT("/:id/items/:itemID", api.updateItem)
	cg.DELETE("/:id/items/:itemID", api.removeItem)
}

// Handlers

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	crs, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	crs, rel, err := api.svc.GetByID(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.JSON(http.StatusOK, CourseDetailResponse{Course: crs, Relationship: rel.String()})
}

func (api *courseApi) update(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	reqCtx := ctx.Request().Context()
	orig, _, err := api.svc.GetByID(reqCtx, actor, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return err
	}

	var data course.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err = data.Validate(api.validate, orig); err != nil {
		return err
	}

	crs, err := api.svc.Update(reqCtx, actor, ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) content(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	lists, items, err := api.svc.Content(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return err
	}
	if lists == nil {
		lists = []course.List{}
	}
	if items == nil {
		items = []course.ContentItem{}
	}
	return ctx.JSON(http.StatusOK, CourseContentResponse{Lists: lists, Items: items})
}

// Lists

func (api *courseApi) addList(ctx echo.Context) error {
	var data course.NewList
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewList")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	lst, err := api.svc.AddList(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.JSON(http.StatusCreated, lst)
}

func (api *courseApi) updateList(ctx echo.Context) error {
	var data course.NewList
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewList")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	lst, err := api.svc.UpdateList(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("listID"), data)
	if err != nil {
		return api.mapCatalogErr(err)
	}
	return ctx.JSON(http.StatusOK, lst)
}

func (api *courseApi) removeList(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.RemoveList(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("listID")); err != nil {
		return api.mapCatalogErr(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) reorderList(ctx echo.Context) error {
	return api.reorder(ctx, ctx.Param("listID"))
}

func (api *courseApi) reorderUnlisted(ctx echo.Context) error {
	return api.reorder(ctx, "")
}

func (api *courseApi) reorder(ctx echo.Context, listID string) error {
	var data course.Reorder
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Reorder")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.Reorder(ctx.Request().Context(), actor, ctx.Param("id"), listID, data); err != nil {
		return api.mapCatalogErr(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Content items

func (api *courseApi) addItem(ctx echo.Context) error {
	var data course.NewContentItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewContentItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	it, err := api.svc.AddItem(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return api.mapCatalogErr(err)
	}
	return ctx.JSON(http.StatusCreated, it)
}

func (api *courseApi) updateItem(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	reqCtx := ctx.Request().Context()
	orig, err := api.svc.Item(reqCtx, actor, ctx.Param("id"), ctx.Param("itemID"))
	if err != nil {
		return api.mapCatalogErr(err)
	}

	var data course.UpdateContentItem
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateContentItem")
	}
	if err = data.Validate(api.validate, orig); err != nil {
		return err
	}

	it, err := api.svc.UpdateItem(reqCtx, actor, ctx.Param("id"), ctx.Param("itemID"), data)
	if err != nil {
		return api.mapCatalogErr(err)
	}
	return ctx.JSON(http.StatusOK, it)
}

func (api *courseApi) removeItem(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.RemoveItem(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("itemID")); err != nil {
		return api.mapCatalogErr(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) mapCatalogErr(err error) error {
	switch errors.Cause(err) {
	case course.ErrNotFound, course.ErrListNotFound, course.ErrItemNotFound:
		return errHttpNotFound
	}
	return err
}

type (
	CourseDetailResponse struct {
		Course       course.Course `json:"course"`
		Relationship string        `json:"relationship"`
	}

	CourseContentResponse struct {
		Lists []course.List        `json:"lists"`
		Items []course.ContentItem `json:"items"`
	}
)
