package negotiation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/damocles-platform/gdpr-engine/internal/domain/errors"
	"github.com/damocles-platform/gdpr-engine/internal/domain/values"
	"github.com/damocles-platform/gdpr-engine/internal/infrastructure/config"
	"github.com/damocles-platform/gdpr-engine/internal/metrics"
	"github.com/damocles-platform/gdpr-engine/internal/service/settlement"
)

// Action is the engine's decision for one negotiation round.
type Action string

const (
	ActionAccept     Action = "ACCEPT"
	ActionCounter    Action = "COUNTER"
	ActionFinalOffer Action = "FINAL_OFFER"
	ActionEscalate   Action = "ESCALATE"
)

// Quality classifies an incoming creditor offer against the settlement
// tiers. Lower creditor demands are better for the user.
type Quality string

const (
	QualityExcellent    Quality = "EXCELLENT"
	QualityGood         Quality = "GOOD"
	QualityAcceptable   Quality = "ACCEPTABLE"
	QualityMarginal     Quality = "MARGINAL"
	QualityPoor         Quality = "POOR"
	QualityUnacceptable Quality = "UNACCEPTABLE"
)

// Party identifies which side placed an offer in the history.
type Party string

const (
	PartyUser     Party = "user"
	PartyCreditor Party = "creditor"
)

// Round is one entry in the append-only negotiation history.
type Round struct {
	Number int          `json:"number"`
	Party  Party        `json:"party"`
	Amount values.Money `json:"amount"`
	At     time.Time    `json:"at"`
}

// CounterOffer is the externally supplied creditor offer being evaluated.
type CounterOffer struct {
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	Currency string  `json:"currency" validate:"required,len=3"`
}

// Evaluation is the engine's decision plus the arithmetic that produced
// it. The rationale is assembled from the same numbers the decision used,
// so the behavior is auditable from the record alone.
type Evaluation struct {
	Action       Action        `json:"action"`
	Quality      Quality       `json:"quality"`
	Round        int           `json:"round"`
	CounterOffer *values.Money `json:"counter_offer,omitempty"`
	Deadline     *time.Time    `json:"deadline,omitempty"`
	Rationale    string        `json:"rationale"`
}

// Engine evaluates incoming creditor offers against a settlement analysis.
// It is stateless across calls: the history slice carries all round state,
// and the analysis is never mutated.
type Engine struct {
	cfg      config.NegotiationConfig
	validate *validator.Validate
	metrics  *metrics.Registry
	now      func() time.Time
}

func NewEngine(cfg config.NegotiationConfig) *Engine {
	return &Engine{
		cfg:      cfg,
		validate: validator.New(),
		now:      time.Now,
	}
}

// WithMetrics attaches the metric registry.
func (e *Engine) WithMetrics(registry *metrics.Registry) *Engine {
	e.metrics = registry
	return e
}

// Evaluate decides the response to one incoming creditor offer. The round
// number is the count of creditor offers seen so far including this one.
func (e *Engine) Evaluate(ctx context.Context, offer CounterOffer, analysis *settlement.Analysis, history []Round, daysSinceInitial int) (*Evaluation, error) {
	eval, err := e.evaluate(offer, analysis, history, daysSinceInitial)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.RecordDecision(ctx, string(eval.Action))
	}
	return eval, nil
}

func (e *Engine) evaluate(offer CounterOffer, analysis *settlement.Analysis, history []Round, daysSinceInitial int) (*Evaluation, error) {
	if err := e.validate.Struct(offer); err != nil {
		return nil, errors.NewValidationError("INVALID_COUNTER_OFFER", "counter offer must carry a positive amount and a currency").WithCause(err)
	}
	if analysis == nil || analysis.Offers == nil {
		return nil, errors.NewValidationError("MISSING_ANALYSIS", "settlement analysis is required")
	}

	amount, err := values.NewMoneyFromFloat(offer.Amount, offer.Currency)
	if err != nil {
		return nil, errors.NewValidationError("INVALID_COUNTER_OFFER", err.Error())
	}
	if settlementCurrency := analysis.Offers.Recommended.Amount.Currency(); amount.Currency() != settlementCurrency {
		return nil, errors.NewValidationError("CURRENCY_MISMATCH",
			fmt.Sprintf("counter offer currency %s does not match settlement currency %s", amount.Currency(), settlementCurrency))
	}

	round := creditorRounds(history) + 1
	quality := e.classify(amount, analysis)

	recommended := analysis.Offers.Recommended.Amount
	conservative := analysis.Offers.Conservative.Amount
	aggressive := analysis.Offers.Aggressive.Amount

	switch {
	case quality == QualityExcellent || quality == QualityGood:
		return &Evaluation{
			Action:  ActionAccept,
			Quality: quality,
			Round:   round,
			Rationale: fmt.Sprintf("creditor offer %s is at or below the recommended settlement %s; accepting",
				amount, recommended),
		}, nil

	case quality == QualityUnacceptable && round >= e.cfg.EscalateAfterRound:
		return &Evaluation{
			Action:  ActionEscalate,
			Quality: quality,
			Round:   round,
			Rationale: fmt.Sprintf("creditor offer %s exceeds 1.5x the conservative tier %s after %d rounds; escalating",
				amount, conservative, round),
		}, nil

	case round >= e.cfg.MaxRounds:
		deadline := e.now().UTC().AddDate(0, 0, e.cfg.FinalOfferDeadlineDays)
		final := recommended
		return &Evaluation{
			Action:       ActionFinalOffer,
			Quality:      quality,
			Round:        round,
			CounterOffer: &final,
			Deadline:     &deadline,
			Rationale: fmt.Sprintf("round cap of %d reached; final offer at the recommended settlement %s, valid %d days",
				e.cfg.MaxRounds, recommended, e.cfg.FinalOfferDeadlineDays),
		}, nil

	default:
		counter, rationale := e.computeCounter(amount, analysis, history, round, daysSinceInitial)
		counter = counter.Max(aggressive).Min(conservative)
		return &Evaluation{
			Action:       ActionCounter,
			Quality:      quality,
			Round:        round,
			CounterOffer: &counter,
			Rationale:    rationale,
		}, nil
	}
}

// classify grades the creditor's demand against the offer tiers.
func (e *Engine) classify(amount values.Money, analysis *settlement.Analysis) Quality {
	recommended := analysis.Offers.Recommended.Amount
	conservative := analysis.Offers.Conservative.Amount

	tolerance := recommended.MulFloat(e.cfg.AutoAcceptTolerance)
	diff, _ := amount.Sub(recommended)
	if diff.IsNegative() {
		diff = diff.MulFloat(-1)
	}
	if !diff.GreaterThan(tolerance) {
		return QualityExcellent
	}
	if !amount.GreaterThan(recommended) {
		return QualityGood
	}
	if !amount.GreaterThan(conservative) {
		return QualityAcceptable
	}
	if !amount.GreaterThan(conservative.MulFloat(1.2)) {
		return QualityMarginal
	}
	if !amount.GreaterThan(conservative.MulFloat(1.5)) {
		return QualityPoor
	}
	return QualityUnacceptable
}

// computeCounter builds the next user offer: a round-progression base,
// a tit-for-tat concession mirroring 80% of the creditor's latest
// movement, a time-pressure nudge near the deadline, and a penultimate
// round split.
func (e *Engine) computeCounter(creditorOffer values.Money, analysis *settlement.Analysis, history []Round, round, daysSinceInitial int) (values.Money, string) {
	recommended := analysis.Offers.Recommended.Amount
	aggressive := analysis.Offers.Aggressive.Amount

	// Base walks from aggressive toward recommended as rounds progress.
	progress := decimal.NewFromInt(int64(round)).Div(decimal.NewFromInt(int64(e.cfg.MaxRounds)))
	span, _ := recommended.Sub(aggressive)
	base, _ := aggressive.Add(span.Mul(progress))
	rationale := fmt.Sprintf("round %d/%d base %s", round, e.cfg.MaxRounds, base.Round(2))

	proposed := base

	// Tit-for-tat against the creditor's most recent concession.
	concessionRate := e.cfg.ConcessionRate / 2
	if prev := lastOffer(history, PartyCreditor); prev != nil && prev.Amount.GreaterThan(creditorOffer) {
		moved, _ := prev.Amount.Sub(creditorOffer)
		movedRate, _ := moved.Amount().Div(prev.Amount.Amount()).Float64()
		concessionRate = 0.8 * movedRate
		if concessionRate > e.cfg.ConcessionRate {
			concessionRate = e.cfg.ConcessionRate
		}
		rationale += fmt.Sprintf("; mirroring 80%% of creditor concession %.1f%%", movedRate*100)
	} else {
		rationale += fmt.Sprintf("; creditor has not moved, conceding %.1f%%", concessionRate*100)
	}

	if last := lastOffer(history, PartyUser); last != nil {
		concession := last.Amount.MulFloat(concessionRate)
		minConcession := values.MustNewMoneyFromFloat(e.cfg.MinConcession, last.Amount.Currency())
		concession = concession.Max(minConcession)
		stepped, _ := last.Amount.Add(concession)
		proposed = proposed.Max(stepped)
	}

	// Time pressure: close the gap to recommended when the response
	// deadline is nearly exhausted.
	daysRemaining := e.cfg.DeadlineDays - daysSinceInitial
	if daysRemaining <= 3 && recommended.GreaterThan(proposed) {
		gap, _ := recommended.Sub(proposed)
		proposed, _ = proposed.Add(gap.MulFloat(0.20))
		rationale += fmt.Sprintf("; %d days to deadline, moving 20%% toward recommended", daysRemaining)
	}

	// Penultimate round: split the difference, capped at recommended.
	if round == e.cfg.MaxRounds-1 {
		sum, _ := proposed.Add(creditorOffer)
		split := sum.MulFloat(0.5).Min(recommended)
		rationale += fmt.Sprintf("; penultimate round, splitting difference to %s", split.Round(2))
		proposed = split
	}

	return proposed.Round(2), rationale
}

func creditorRounds(history []Round) int {
	n := 0
	for _, r := range history {
		if r.Party == PartyCreditor {
			n++
		}
	}
	return n
}

func lastOffer(history []Round, party Party) *Round {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Party == party {
			return &history[i]
		}
	}
	return nil
}
