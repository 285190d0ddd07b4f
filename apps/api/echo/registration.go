package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/iba-dss/hxd-api/core/registration"
)

type registrationApi struct {
	svc      *registration.Service
	validate *validator.Validate
}

func registerRegistrationAPI(g *echo.Group, svc *registration.Service, validate *validator.Validate) {
	api := registrationApi{
		svc:      svc,
		validate: validate,
	}

	g.GET("/modules", api.modules)

	dg := g.Group("/drafts")
	dg.POST("", api.create)

	// detail endpoints
	kg := dg.Group("/:key")
	kg.GET("", api.retrieve)
	kg.PUT("", api.save)
	kg.DELETE("", api.destroy)
	kg.POST("/validate", api.validateDraft)
	kg.POST("/payment", api.initiatePayment)
	kg.POST("/submit", api.submit)

	eg := g.Group("/edit")
	eg.POST("/login", api.editLogin)
	eg.POST("", api.editUpdate)
}

// Requests

// DraftRequest is the mutable slice of a draft; keys, payment state and
// timestamps are owned by the server. No field is mandatory: snapshots persist
// whatever the user has typed so far, valid or not.
type DraftRequest struct {
	TeamName       string                     `json:"team_name"`
	Institute      string                     `json:"institute"`
	Affiliated     bool                       `json:"affiliated"`
	Modules        []string                   `json:"modules"`
	Participants   []registration.Participant `json:"participants"`
	OrderReference string                     `json:"order_reference"`
}

func (dr DraftRequest) toDraft() registration.Draft {
	return registration.Draft{
		TeamName:       dr.TeamName,
		Institute:      dr.Institute,
		Affiliated:     dr.Affiliated,
		Modules:        dr.Modules,
		Participants:   dr.Participants,
		OrderReference: dr.OrderReference,
	}
}

type SubmitRequest struct {
	OrderReference string `json:"order_reference"`
}

type EditLoginRequest struct {
	CNIC string `json:"cnic" validate:"required"`
	Key  string `json:"key" validate:"required"`
}

func (lr *EditLoginRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(lr)
}

// Handlers

func (api *registrationApi) modules(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{
		"modules":           api.svc.Catalog(),
		"early_bird":        api.svc.EarlyBirdActive(),
		"early_bird_cutoff": api.svc.EarlyBirdCutoff(),
	})
}

func (api *registrationApi) create(ctx echo.Context) error {
	d, err := api.svc.NewDraft(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "creating draft")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *registrationApi) retrieve(ctx echo.Context) error {
	d, err := api.svc.Get(ctx.Request().Context(), ctx.Param("key"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"draft": d, "total": api.svc.Quote(d)})
}

func (api *registrationApi) save(ctx echo.Context) error {
	var data DraftRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DraftRequest")
	}

	d, total, err := api.svc.Save(ctx.Request().Context(), ctx.Param("key"), data.toDraft())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"draft": d, "total": total})
}

func (api *registrationApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("key")); err != nil {
		return errors.Wrap(err, "deleting draft")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *registrationApi) validateDraft(ctx echo.Context) error {
	d, err := api.svc.Get(ctx.Request().Context(), ctx.Param("key"))
	if err != nil {
		return err
	}
	if err = api.svc.Validate(d, true /* requireOrderRef */); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"valid": true})
}

func (api *registrationApi) initiatePayment(ctx echo.Context) error {
	d, link, err := api.svc.InitiatePayment(ctx.Request().Context(), ctx.Param("key"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"draft":        d,
		"total":        api.svc.Quote(d),
		"payment_link": link,
	})
}

func (api *registrationApi) submit(ctx echo.Context) error {
	var data SubmitRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitRequest")
	}

	d, err := api.svc.Submit(ctx.Request().Context(), ctx.Param("key"), data.OrderReference)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"draft": d, "message": "registration confirmed"})
}

func (api *registrationApi) editLogin(ctx echo.Context) error {
	var data EditLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EditLoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.EditLogin(ctx.Request().Context(), data.CNIC, data.Key)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *registrationApi) editUpdate(ctx echo.Context) error {
	var data registration.EditUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EditUpdate")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	res, err := api.svc.EditUpdate(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}
