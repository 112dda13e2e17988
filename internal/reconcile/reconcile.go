// Package reconcile makes sure the content service grants the dashboard's
// roles access to every content type the gateway serves.
//
// DESIGN: One idempotent pass per startup, before traffic is accepted:
//   - for each role type (public, authenticated) and content-type UID
//   - for each verb in Verbs, look up <uid>.<verb> for that role
//   - absent: create enabled; disabled: enable; enabled: leave alone
//
// Nothing is ever deleted. Failures are logged and counted, never fatal: Run
// always returns a Report and the gateway starts regardless.
package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/doublev/bff-gateway/internal/config"
)

// Verbs are the actions granted on every content type.
var Verbs = []string{"find", "findOne", "create", "update", "delete"}

// Role is a content-service role.
type Role struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// Permission is one action grant for a role.
type Permission struct {
	ID      int64  `json:"id,omitempty"`
	Action  string `json:"action"`
	RoleID  int64  `json:"role"`
	Enabled bool   `json:"enabled"`
}

// Admin is the subset of the content service's admin API the reconciler needs.
type Admin interface {
	// FindRole returns nil, nil when no role of that type exists.
	FindRole(ctx context.Context, roleType string) (*Role, error)
	// FindPermission returns nil, nil when the action is not granted to the role.
	FindPermission(ctx context.Context, action string, roleID int64) (*Permission, error)
	EnablePermission(ctx context.Context, id int64) error
	CreatePermission(ctx context.Context, p Permission) error
}

// Recorder persists reports.
type Recorder interface {
	Record(ctx context.Context, report Report) error
}

// RoleReport counts the work done for one role.
type RoleReport struct {
	Role       string `json:"role"`
	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
	Created    int    `json:"created"`
	Enabled    int    `json:"enabled"`
	Unchanged  int    `json:"unchanged"`
	Failed     int    `json:"failed"`
}

// Report summarizes one reconciliation run.
type Report struct {
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Roles      []RoleReport `json:"roles"`
	Aborted    string       `json:"aborted,omitempty"`
}

// Totals sums the per-role counts.
func (r Report) Totals() (created, enabled, unchanged, failed int) {
	for _, rr := range r.Roles {
		created += rr.Created
		enabled += rr.Enabled
		unchanged += rr.Unchanged
		failed += rr.Failed
	}
	return created, enabled, unchanged, failed
}

// Reconciler runs the permission upsert.
type Reconciler struct {
	admin    Admin
	uids     []string
	roles    []string
	retry    RetryPolicy
	recorder Recorder
	sleep    func(context.Context, time.Duration) error
	now      func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithRoles sets the role types to reconcile, in order.
func WithRoles(roles ...string) Option {
	return func(r *Reconciler) {
		r.roles = roles
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(r *Reconciler) {
		r.retry = p
	}
}

// WithRecorder persists every report.
func WithRecorder(rec Recorder) Option {
	return func(r *Reconciler) {
		r.recorder = rec
	}
}

// New creates a reconciler for the given content-type UIDs.
func New(admin Admin, uids []string, opts ...Option) *Reconciler {
	r := &Reconciler{
		admin: admin,
		uids:  uids,
		roles: append([]string(nil), config.DefaultReconcileRoles...),
		retry: DefaultRetryPolicy(),
		sleep: sleepContext,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type result int

const (
	resultUnchanged result = iota
	resultEnabled
	resultCreated
)

// Run performs one reconciliation pass and returns its report.
func (r *Reconciler) Run(ctx context.Context) Report {
	report := Report{StartedAt: r.now()}

	for _, roleType := range r.roles {
		if ctx.Err() != nil {
			report.Aborted = ctx.Err().Error()
			break
		}
		report.Roles = append(report.Roles, r.reconcileRole(ctx, roleType))
	}
	if report.Aborted == "" && ctx.Err() != nil {
		report.Aborted = ctx.Err().Error()
	}

	report.FinishedAt = r.now()
	created, enabled, unchanged, failed := report.Totals()

	event := log.Info()
	if failed > 0 || report.Aborted != "" {
		event = log.Warn()
	}
	event.
		Int("created", created).
		Int("enabled", enabled).
		Int("unchanged", unchanged).
		Int("failed", failed).
		Str("aborted", report.Aborted).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("permission reconciliation finished")

	if r.recorder != nil {
		if err := r.recorder.Record(context.WithoutCancel(ctx), report); err != nil {
			log.Warn().Err(err).Msg("failed to record reconciliation report")
		}
	}
	return report
}

func (r *Reconciler) reconcileRole(ctx context.Context, roleType string) RoleReport {
	rr := RoleReport{Role: roleType}

	var role *Role
	err := r.withRetry(ctx, "find role "+roleType, func() error {
		var err error
		role, err = r.admin.FindRole(ctx, roleType)
		return err
	})
	if err != nil {
		log.Warn().Err(err).Str("role", roleType).Msg("role lookup failed, skipping")
		rr.Skipped, rr.SkipReason = true, err.Error()
		return rr
	}
	if role == nil {
		log.Warn().Str("role", roleType).Msg("role not found, skipping")
		rr.Skipped, rr.SkipReason = true, "role not found"
		return rr
	}

	for _, uid := range r.uids {
		for _, verb := range Verbs {
			if ctx.Err() != nil {
				return rr
			}
			action := uid + "." + verb
			res, err := r.reconcileAction(ctx, action, role.ID)
			if err != nil {
				log.Warn().Err(err).Str("role", roleType).Str("action", action).Msg("permission reconcile failed")
				rr.Failed++
				continue
			}
			switch res {
			case resultCreated:
				log.Info().Str("role", roleType).Str("action", action).Msg("permission created")
				rr.Created++
			case resultEnabled:
				log.Info().Str("role", roleType).Str("action", action).Msg("permission enabled")
				rr.Enabled++
			default:
				rr.Unchanged++
			}
		}
	}
	return rr
}

func (r *Reconciler) reconcileAction(ctx context.Context, action string, roleID int64) (result, error) {
	var existing *Permission
	err := r.withRetry(ctx, "find "+action, func() error {
		var err error
		existing, err = r.admin.FindPermission(ctx, action, roleID)
		return err
	})
	if err != nil {
		return resultUnchanged, err
	}

	switch {
	case existing == nil:
		err = r.withRetry(ctx, "create "+action, func() error {
			return r.admin.CreatePermission(ctx, Permission{Action: action, RoleID: roleID, Enabled: true})
		})
		return resultCreated, err
	case !existing.Enabled:
		err = r.withRetry(ctx, "enable "+action, func() error {
			return r.admin.EnablePermission(ctx, existing.ID)
		})
		return resultEnabled, err
	default:
		return resultUnchanged, nil
	}
}
