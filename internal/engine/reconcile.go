package engine

import (
	"context"
	"errors"
	"log/slog"

	"hcloud-firewall-controller/internal/hcloud"
	"hcloud-firewall-controller/internal/metrics"
	"hcloud-firewall-controller/internal/model"
)

// Stage identifies which step of an account's cycle failed.
type Stage string

const (
	StageLookup Stage = "lookup"
	StageCreate Stage = "create"
	StageApply  Stage = "apply"
)

// Outcome is the result of reconciling one account in one cycle.
type Outcome struct {
	Account    model.Account
	FirewallID int64
	Applied    bool
	Stage      Stage // set when Err is non-nil
	Err        error
}

// Reconciler converges one account's firewall toward a desired rule list.
// It holds no state between cycles; remote state is re-fetched every time
// to tolerate out-of-band changes.
type Reconciler struct {
	newClient func(token string) hcloud.Client
}

func NewReconciler(newClient func(token string) hcloud.Client) *Reconciler {
	return &Reconciler{newClient: newClient}
}

// ReconcileAccount runs one account's cycle: look the firewall up by name,
// create it when missing, and replace its rules only when they differ from
// the desired list. Lookup, diff and apply are strictly sequential.
func (r *Reconciler) ReconcileAccount(ctx context.Context, account model.Account, desired []model.RuleSpec) Outcome {
	client := r.newClient(account.Token)

	fw, err := client.FindFirewall(ctx, account.FirewallName)
	switch {
	case errors.Is(err, hcloud.ErrNotFound):
		fw, err = client.CreateFirewall(ctx, account.FirewallName)
		if err != nil {
			return Outcome{Account: account, Stage: StageCreate, Err: err}
		}
		slog.Info("created firewall", "name", fw.Name, "id", fw.ID, "token", account.Redacted())
	case err != nil:
		return Outcome{Account: account, Stage: StageLookup, Err: err}
	}

	if RulesEqual(desired, fw.Rules) {
		slog.Info("firewall rules already up to date", "name", fw.Name, "id", fw.ID)
		metrics.InSyncTotal.Inc()
		return Outcome{Account: account, FirewallID: fw.ID}
	}

	if err := client.SetRules(ctx, fw.ID, desired); err != nil {
		return Outcome{Account: account, FirewallID: fw.ID, Stage: StageApply, Err: err}
	}
	slog.Info("firewall rules updated", "name", fw.Name, "id", fw.ID, "rules", len(desired))
	metrics.UpdatesTotal.Inc()
	return Outcome{Account: account, FirewallID: fw.ID, Applied: true}
}
