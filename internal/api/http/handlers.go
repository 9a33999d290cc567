package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/snaplink/snaplink/internal/database"
	"github.com/snaplink/snaplink/internal/safety"
	"github.com/snaplink/snaplink/internal/service"
	"github.com/snaplink/snaplink/pkg/response"
)

// handlePing handles health check requests to ensure the server is running.
func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

// handleRedirect handles the consuming dereference of a slug. This is the
// only endpoint that mutates the click count. Outcomes that stop the redirect
// are rendered as plain text with the status code the outcome maps to.
func handleRedirect(gate Resolver) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		outcome, err := gate.Consume(r.Context(), slug, time.Now())
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			http.Error(w, "Something went wrong.", http.StatusInternalServerError)
			return
		}

		switch outcome.Kind {
		case service.OutcomeNotFound:
			http.Error(w, "This link does not exist.", http.StatusNotFound)
		case service.OutcomeBlocked:
			http.Error(w, "This link has been blocked.", http.StatusForbidden)
		case service.OutcomeExpired:
			http.Error(w, "This link has expired.", http.StatusGone)
		case service.OutcomeScheduled:
			msg := fmt.Sprintf("This link is not active yet. It activates at %s.",
				outcome.StartsAt.UTC().Format(time.RFC3339))
			http.Error(w, msg, http.StatusForbidden)
		case service.OutcomePasswordRequired:
			if pw := r.URL.Query().Get("password"); pw != "" && pw == outcome.Link.Password {
				renderConsumed(w, r, outcome)
				return
			}
			http.Error(w, "This link is password protected.", http.StatusUnauthorized)
		default:
			renderConsumed(w, r, outcome)
		}
	}
}

// renderConsumed finishes a consumed resolution: either the interstitial
// preview payload or the redirect itself.
func renderConsumed(w http.ResponseWriter, r *http.Request, outcome service.Outcome) {
	if outcome.Kind == service.OutcomePreviewRequired || outcome.Link.ShowPreview {
		resp := toLinkResponse(outcome.Link)

		render.Status(r, http.StatusOK)
		render.JSON(w, r, peekResponse{Status: "preview", Link: &resp})
		return
	}

	http.Redirect(w, r, outcome.Link.TargetURL, http.StatusFound)
}

// handlePeek handles read-only resolution requests, used by clients that
// render a password or preview screen before committing to the redirect.
// It never changes the click count.
func handlePeek(gate Resolver) http.HandlerFunc {
	const op = "api.http.handlePeek"

	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		outcome, err := gate.Peek(r.Context(), slug, time.Now())
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		switch outcome.Kind {
		case service.OutcomeNotFound:
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.ResourceNotFoundResponse)
		case service.OutcomeBlocked:
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, peekResponse{Status: "blocked", Reason: "link has been blocked"})
		case service.OutcomeExpired:
			render.Status(r, http.StatusGone)
			render.JSON(w, r, peekResponse{Status: "expired", Reason: outcome.Reason})
		case service.OutcomeScheduled:
			startsAt := outcome.StartsAt
			render.Status(r, http.StatusOK)
			render.JSON(w, r, peekResponse{
				Status:   "scheduled",
				Reason:   "link is not active yet",
				StartsAt: &startsAt,
			})
		case service.OutcomePasswordRequired:
			// Do not leak the destination before the password is confirmed.
			resp := toLinkResponse(outcome.Link)
			resp.TargetURL = ""

			render.Status(r, http.StatusOK)
			render.JSON(w, r, peekResponse{Status: "password_required", Link: &resp})
		case service.OutcomePreviewRequired:
			resp := toLinkResponse(outcome.Link)

			render.Status(r, http.StatusOK)
			render.JSON(w, r, peekResponse{Status: "preview", Link: &resp})
		default:
			resp := toLinkResponse(outcome.Link)

			render.Status(r, http.StatusOK)
			render.JSON(w, r, peekResponse{Status: "active", Link: &resp})
		}
	}
}

// handleCreateLink handles POST requests to publish a new link.
//
// The destination is scored for safety before the link is stored; risky
// destinations are created flagged for moderation rather than rejected.
func handleCreateLink(svc LinkService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleCreateLink"
	const successMsg = "The link has been created successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req createLinkRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		link, err := svc.CreateLink(r.Context(), service.CreateLinkParams{
			TargetURL:     req.TargetURL,
			Slug:          req.Slug,
			Title:         req.Title,
			Password:      req.Password,
			IsOneTime:     req.IsOneTime,
			MaxClicks:     req.MaxClicks,
			ExpiresAt:     req.ExpiresAt,
			ScheduleStart: req.ScheduleStart,
			ShowPreview:   req.ShowPreview,
		})
		if err != nil {
			if errors.Is(err, database.ErrSlugExists) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.ErrorResponse("Slug Conflict", "The requested slug is already taken."))
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toLinkResponse(link)))
	}
}

// handleLinkStats handles GET requests to retrieve usage statistics for a link.
func handleLinkStats(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleLinkStats"
	const successMsg = "The link statistics retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		link, err := svc.GetLinkStats(r.Context(), slug)
		if err != nil {
			if errors.Is(err, database.ErrLinkNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toLinkResponse(link)))
	}
}

// handleUnlock handles the password confirmation step for protected links.
// Failed attempts count toward the auth quota; successes do not.
func handleUnlock(svc LinkService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleUnlock"
	const successMsg = "The link has been unlocked."

	return func(w http.ResponseWriter, r *http.Request) {
		var req unlockRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		slug := chi.URLParam(r, "slug")

		link, ok, err := svc.VerifyPassword(r.Context(), slug, req.Password)
		if err != nil {
			if errors.Is(err, database.ErrLinkNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.ErrorResponse("Unauthorized", "The password is incorrect."))
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toLinkResponse(link)))
	}
}

// handleScanURL handles ad hoc safety scans of a destination URL.
func handleScanURL(validate *validator.Validate) http.HandlerFunc {
	const successMsg = "The URL has been scanned."

	return func(w http.ResponseWriter, r *http.Request) {
		var req scanURLRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, safety.Score(req.URL)))
	}
}

// handleRescanSafety handles the batch safety rescan over stored links.
func handleRescanSafety(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleRescanSafety"
	const successMsg = "The safety rescan has completed."

	return func(w http.ResponseWriter, r *http.Request) {
		var req rescanRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		rescanned, err := svc.RescanSafety(r.Context(), req.OnlyMissing)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, map[string]int{"rescanned": rescanned}))
	}
}

// handleBlockIP handles manual IP bans. Idempotent.
func handleBlockIP(tracker IPOverrides) http.HandlerFunc {
	const successMsg = "The IP has been blocked."

	return func(w http.ResponseWriter, r *http.Request) {
		var req blockIPRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		reason := req.Reason
		if reason == "" {
			reason = "manually blocked"
		}

		tracker.Block(chi.URLParam(r, "ip"), reason)

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg))
	}
}

// handleUnblockIP handles manual IP unbans. Idempotent.
func handleUnblockIP(tracker IPOverrides) http.HandlerFunc {
	const successMsg = "The IP has been unblocked."

	return func(w http.ResponseWriter, r *http.Request) {
		tracker.Unblock(chi.URLParam(r, "ip"))

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg))
	}
}

// handleReloadSettings handles the explicit settings-changed signal.
func handleReloadSettings(provider SettingsReloader) http.HandlerFunc {
	const successMsg = "The settings have been reloaded."

	return func(w http.ResponseWriter, r *http.Request) {
		changed := provider.Reload(r.Context())

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, map[string]bool{"changed": changed}))
	}
}
