package academy

import (
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-academy/catalog"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Patch(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// RouteLimits are optional rate limits for the unauthenticated entry points
type RouteLimits struct {
	Login  router.MiddlewareFunc
	Forgot router.MiddlewareFunc
}

type HTTPController struct {
	Debug    bool
	Prefix   string
	Logger   Logger
	Repo     RepositoryManager
	Auther   *Auther
	Routes   *RouteAuthenticator
	Recovery *RecoveryFlow
	Register *RegisterUserHandler
	Tasks    *CompleteTaskHandler
	Statuses *UpdateUserStatusHandler
	Catalog  *CatalogService
	Limits   RouteLimits
}

type HTTPControllerOption func(*HTTPController) *HTTPController

func NewHTTPController(opts ...HTTPControllerOption) *HTTPController {
	c := &HTTPController{
		Prefix: "/api/v1",
		Logger: defLogger{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in academy controller...")
	}

	if c.Auther == nil {
		panic("Missing Auther in academy controller...")
	}

	if c.Routes == nil {
		panic("Missing RouteAuthenticator in academy controller...")
	}

	tokens := c.Auther.TokenService()
	links := DefaultRecoveryConfig(c.Routes.cfg.GetPublicURL())

	if c.Recovery == nil {
		c.Recovery = NewRecoveryFlow(c.Repo, tokens, links, WithRecoveryLogger(c.Logger))
	}
	if c.Register == nil {
		c.Register = NewRegisterUserHandler(c.Repo, tokens, links).WithLogger(c.Logger)
	}
	if c.Tasks == nil {
		c.Tasks = NewCompleteTaskHandler(c.Repo).WithLogger(c.Logger)
	}
	if c.Statuses == nil {
		c.Statuses = NewUpdateUserStatusHandler(c.Repo).WithLogger(c.Logger)
	}
	if c.Catalog == nil {
		c.Catalog = NewCatalogService(c.Repo).WithLogger(c.Logger)
	}

	return c
}

func WithControllerDebug(debug bool) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Debug = debug
		return c
	}
}

func WithControllerLogger(logger Logger) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRepository(repo RepositoryManager) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther *Auther) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Auther = auther
		return c
	}
}

func WithControllerRoutes(routes *RouteAuthenticator) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Routes = routes
		return c
	}
}

func WithControllerRecovery(flow *RecoveryFlow) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Recovery = flow
		return c
	}
}

func WithControllerRegistration(h *RegisterUserHandler) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Register = h
		return c
	}
}

func WithControllerTasks(h *CompleteTaskHandler) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Tasks = h
		return c
	}
}

func WithControllerStatuses(h *UpdateUserStatusHandler) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Statuses = h
		return c
	}
}

func WithControllerCatalog(s *CatalogService) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Catalog = s
		return c
	}
}

func WithControllerLimits(limits RouteLimits) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Limits = limits
		return c
	}
}

// RegisterRoutes mounts the API under the controller prefix.
func (a *HTTPController) RegisterRoutes(app RouteRegistrar) {
	p := strings.TrimRight(a.Prefix, "/")

	anyRole := a.Routes.ProtectedRoute(AnyRole())
	learners := a.Routes.ProtectedRoute(NewRoleSet(RoleUser))
	admins := a.Routes.ProtectedRoute(Administrators())

	app.Post(p+"/auth/login", a.LoginPost, limit(a.Limits.Login)...).SetName("auth.login")
	app.Post(p+"/auth/refresh", a.RefreshPost).SetName("auth.refresh")
	app.Post(p+"/auth/logout", a.LogoutPost).SetName("auth.logout")
	app.Post(p+"/auth/password/forgot", a.PasswordForgotPost, limit(a.Limits.Forgot)...).SetName("auth.password.forgot")
	app.Post(p+"/auth/password/setup", a.PasswordSetupPost).SetName("auth.password.setup")
	app.Post(p+"/auth/password/reset", a.PasswordResetPost).SetName("auth.password.reset")
	app.Get(p+"/auth/password/verify", a.PasswordTokenVerify).SetName("auth.password.verify")
	app.Post(p+"/auth/password/change", a.PasswordChangePost, anyRole).SetName("auth.password.change")

	app.Get(p+"/me", a.MeShow, anyRole).SetName("me.show")
	app.Post(p+"/me/tasks", a.TaskComplete, learners).SetName("me.tasks.create")

	app.Get(p+"/programs", a.ProgramsIndex, anyRole).SetName("programs.index")
	app.Get(p+"/programs/:id", a.ProgramShow, anyRole).SetName("programs.show")
	app.Post(p+"/programs", a.ProgramCreate, admins).SetName("programs.create")
	app.Post(p+"/programs/:id/modules", a.ModuleCreate, admins).SetName("modules.create")
	app.Post(p+"/modules/:id/items", a.ItemCreate, admins).SetName("items.create")
	app.Delete(p+"/catalog/:kind/:id", a.CatalogNodeDelete, admins).SetName("catalog.delete")

	app.Post(p+"/users", a.UserCreate, admins).SetName("users.create")
	app.Patch(p+"/users/:id/status", a.UserStatusUpdate, admins).SetName("users.status.update")
}

func limit(mw router.MiddlewareFunc) []router.MiddlewareFunc {
	if mw == nil {
		return nil
	}
	return []router.MiddlewareFunc{mw}
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *HTTPController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := a.bind(ctx, payload); err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.Routes.HandleError(ctx, validationError(err, "invalid login"))
	}

	session, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	a.Routes.SetRefreshCookie(ctx, session.RefreshToken)

	return SendSuccess(ctx, http.StatusOK, "logged in", session.Response())
}

// RefreshRequest payload. The token may come in the refresh cookie instead.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshResponse struct {
	AccessToken     string    `json:"accessToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

func (a *HTTPController) RefreshPost(ctx router.Context) error {
	payload := new(RefreshRequest)
	if err := ctx.Bind(payload); err != nil {
		// an empty body is fine when the cookie carries the token
		payload.RefreshToken = ""
	}

	raw := strings.TrimSpace(payload.RefreshToken)
	if raw == "" {
		raw = a.Routes.RefreshCookie(ctx)
	}
	if raw == "" {
		return a.Routes.HandleError(ctx, newError(ErrUnauthenticated, "refresh token required"))
	}

	access, err := a.Auther.Refresh(ctx.Context(), raw)
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	return SendSuccess(ctx, http.StatusOK, "token refreshed", RefreshResponse{
		AccessToken:     access.Token,
		AccessExpiresAt: access.ExpiresAt,
	})
}

func (a *HTTPController) LogoutPost(ctx router.Context) error {
	a.Routes.ClearRefreshCookie(ctx)
	return SendSuccess(ctx, http.StatusOK, "logged out", nil)
}

type PasswordForgotRequest struct {
	Email string `json:"email"`
}

type PasswordForgotResponse struct {
	Warnings []string `json:"warnings,omitempty"`
}

func (a *HTTPController) PasswordForgotPost(ctx router.Context) error {
	payload := new(PasswordForgotRequest)
	if err := a.bind(ctx, payload); err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	result, err := a.Recovery.RequestReset(ctx.Context(), payload.Email)
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	return SendSuccess(ctx, http.StatusOK, "reset link sent", PasswordForgotResponse{
		Warnings: result.Warnings,
	})
}

// PasswordTokenRequest completes a setup or a reset
type PasswordTokenRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (a *HTTPController) PasswordSetupPost(ctx router.Context) error {
	payload := new(PasswordTokenRequest)
	if err := a.bind(ctx, payload); err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	if err := a.Recovery.CreateInitialPassword(ctx.Context(), payload.Token, payload.Password); err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	return SendSuccess(ctx, http.StatusOK, "password created", nil)
}

func (a *HTTPController) PasswordResetPost(ctx router.Context) error {
	payload := new(PasswordTokenRequest)
	if err := a.bind(ctx, payload); err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	if err := a.Recovery.CompleteReset(ctx.Context(), payload.Token, payload.Password); err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	return SendSuccess(ctx, http.StatusOK, "password reset", nil)
}

// PasswordTokenVerify lets a client check a link before showing the form.
// The token is not consumed.
func (a *HTTPController) PasswordTokenVerify(ctx router.Context) error {
	kind := TokenKind(ctx.Query("kind", string(TokenKindPasswordReset)))
	if !kind.IsSingleUse() {
		return a.Routes.HandleError(ctx, newError(ErrValidation, "kind must be a single use token kind", map[string]any{
			"kind": kind,
		}))
	}

	resp, err := a.Recovery.VerifyToken(ctx.Context(), kind, ctx.Query("token", ""))
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	return SendSuccess(ctx, http.StatusOK, "", resp)
}

type PasswordChangeRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (a *HTTPController) PasswordChangePost(ctx router.Context) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	payload := new(PasswordChangeRequest)
	if err := a.bind(ctx, payload); err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	if err := a.Recovery.ChangePassword(ctx.Context(), user, payload.OldPassword, payload.NewPassword); err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	return SendSuccess(ctx, http.StatusOK, "password changed", nil)
}

func (a *HTTPController) MeShow(ctx router.Context) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}
	return SendSuccess(ctx, http.StatusOK, "", SummaryFromUser(user))
}

func (a *HTTPController) TaskComplete(ctx router.Context) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	payload := new(CompleteTaskMessage)
	if err := a.bind(ctx, payload); err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	var resp *CompleteTaskResponse
	err = a.Tasks.Execute(ctx.Context(), CompleteTaskMessage{
		User:      user,
		ContentID: payload.ContentID,
		OnResponse: func(r *CompleteTaskResponse) {
			resp = r
		},
	})
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	return SendSuccess(ctx, http.StatusOK, "", resp)
}

func (a *HTTPController) ProgramsIndex(ctx router.Context) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	snapshot, err := a.Catalog.Snapshot(ctx.Context())
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	view := Project(user.Role, user.CompletedTasks, snapshot, adminOptions(ctx))
	return SendSuccess(ctx, http.StatusOK, "", view)
}

func (a *HTTPController) ProgramShow(ctx router.Context) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	snapshot, err := a.Catalog.Snapshot(ctx.Context())
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	view, err := ProjectProgram(user.Role, user.CompletedTasks, snapshot, ctx.Param("id"), adminOptions(ctx))
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	return SendSuccess(ctx, http.StatusOK, "", view)
}

// adminOptions reads ?hideDeleted=true. Learners never see deleted nodes
// regardless.
func adminOptions(ctx router.Context) catalog.AdminOptions {
	return catalog.AdminOptions{
		HideDeleted: strings.EqualFold(ctx.Query("hideDeleted", ""), "true"),
	}
}

func (a *HTTPController) ProgramCreate(ctx router.Context) error {
	actor, err := a.currentUser(ctx)
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	payload := new(CreateProgramMessage)
	if err := a.bind(ctx, payload); err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	program, err := a.Catalog.CreateProgram(ctx.Context(), actor, *payload)
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	return SendSuccess(ctx, http.StatusCreated, "program created", program)
}

func (a *HTTPController) ModuleCreate(ctx router.Context) error {
	actor, err := a.currentUser(ctx)
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	payload := new(CreateModuleMessage)
	if err := a.bind(ctx, payload); err != nil {
		return a.Routes.HandleError(ctx, err)
	}
	payload.ProgramID = ctx.Param("id")

	module, err := a.Catalog.CreateModule(ctx.Context(), actor, *payload)
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	return SendSuccess(ctx, http.StatusCreated, "module created", module)
}

func (a *HTTPController) ItemCreate(ctx router.Context) error {
	actor, err := a.currentUser(ctx)
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	payload := new(CreateItemMessage)
	if err := a.bind(ctx, payload); err != nil {
		return a.Routes.HandleError(ctx, err)
	}
	payload.ModuleID = ctx.Param("id")

	item, err := a.Catalog.CreateItem(ctx.Context(), actor, *payload)
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	return SendSuccess(ctx, http.StatusCreated, "item created", item)
}

func (a *HTTPController) CatalogNodeDelete(ctx router.Context) error {
	actor, err := a.currentUser(ctx)
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	err = a.Catalog.Delete(ctx.Context(), actor, DeleteCatalogNodeMessage{
		Node: CatalogNode(ctx.Param("kind")),
		ID:   ctx.Param("id"),
	})
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	return SendSuccess(ctx, http.StatusOK, "deleted", nil)
}

type UserCreateResponse struct {
	User     IdentitySummary `json:"user"`
	Warnings []string        `json:"warnings,omitempty"`
}

func (a *HTTPController) UserCreate(ctx router.Context) error {
	actor, err := a.currentUser(ctx)
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	payload := new(RegisterUserMessage)
	if err := a.bind(ctx, payload); err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	var resp *RegisterUserResponse
	payload.Actor = actor
	payload.OnResponse = func(r *RegisterUserResponse) {
		resp = r
	}

	if err := a.Register.Execute(ctx.Context(), *payload); err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	return SendSuccess(ctx, http.StatusCreated, "user created", UserCreateResponse{
		User:     SummaryFromUser(resp.User),
		Warnings: resp.Result.Warnings,
	})
}

func (a *HTTPController) UserStatusUpdate(ctx router.Context) error {
	actor, err := a.currentUser(ctx)
	if err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	payload := new(UpdateUserStatusMessage)
	if err := a.bind(ctx, payload); err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	var updated *User
	payload.Actor = actor
	payload.UserID = ctx.Param("id")
	payload.OnResponse = func(u *User) {
		updated = u
	}

	if err := a.Statuses.Execute(ctx.Context(), *payload); err != nil {
		return a.Routes.HandleError(ctx, err)
	}

	return SendSuccess(ctx, http.StatusOK, "status updated", SummaryFromUser(updated))
}

func (a *HTTPController) currentUser(ctx router.Context) (*User, error) {
	user, ok := FromRouterContext(ctx, a.Routes.contextKey())
	if !ok {
		return nil, newError(ErrUnauthenticated, "")
	}
	return user, nil
}

func (a *HTTPController) bind(ctx router.Context, payload any) error {
	if err := ctx.Bind(payload); err != nil {
		if a.Debug {
			a.Logger.Debug("%s %s bind error: %v", ctx.Method(), ctx.Path(), err)
		}
		return wrapError(ErrValidation, err, map[string]any{"body": "could not parse request body"})
	}
	return nil
}
