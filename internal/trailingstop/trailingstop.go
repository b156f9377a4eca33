// Package trailingstop implements the trailing-stop state machine described
// in the data model (§3.3, §3.4, §4.1). Buy and sell are the same machine
// shape — "they share structure; we describe the buy machine; the sell
// machine is its mirror" — so one Machine type, parameterized by Mirror,
// replaces what would otherwise be duplicated buy/sell implementations.
//
// A non-mirrored machine (the buy shape) arms on a drop from a peak and
// fires on a rebound from the trough since arming. A mirrored machine (the
// sell shape) arms on a rise from a trough and fires on a pullback from the
// peak since arming. Strategy-mode inversion (long vs short, §3.7
// strategyMode) is the caller's responsibility: it decides which role
// (entry or exit) uses which machine shape.
//
// The machine collapses "triggered" back to "inactive" within the same
// day's evaluation; callers never observe a transient Triggered phase, only
// the boolean CheckFire returns.
package trailingstop

import (
	"github.com/aristath/dca-simulator/internal/params"
	"github.com/shopspring/decimal"
)

// Phase is a trailing-stop machine's persistent state between days.
type Phase int

const (
	Inactive Phase = iota
	Armed
)

// Machine is one trailing-stop state machine.
type Machine struct {
	Phase Phase

	// ReferenceExtreme is the peak (buy shape) or trough (sell shape)
	// observed at arming time — §3.3's recentPeakReference / §3.4's
	// recentBottomReference.
	ReferenceExtreme decimal.Decimal

	// OppositeExtremeSinceArmed tracks the trough (buy shape) or peak
	// (sell shape) since arming — §3.3's recentTroughSinceArmed / §3.4's
	// recentPeakSinceArmed.
	OppositeExtremeSinceArmed decimal.Decimal

	ActivationPercent float64
	TriggerPercent    float64 // reboundPercent (buy) or pullbackPercent (sell)

	// Mirror selects the sell shape (arm on rise, fire on pullback) over
	// the default buy shape (arm on drop, fire on rebound).
	Mirror bool
}

// NewBuyShape returns an inactive buy-shape machine (arms on a drop, fires
// on a rebound).
func NewBuyShape() *Machine { return &Machine{} }

// NewSellShape returns an inactive sell-shape machine (arms on a rise,
// fires on a pullback).
func NewSellShape() *Machine { return &Machine{Mirror: true} }

// IsArmed reports whether the machine currently holds an open reference.
func (m *Machine) IsArmed() bool { return m.Phase == Armed }

// Arm transitions inactive -> armed when the activation condition holds
// against extreme (recentPeak for buy shape, recentTrough for sell shape).
// Parameters are captured at arming time so a later parameter change does
// not retroactively affect an open order.
func (m *Machine) Arm(extreme, price decimal.Decimal, activationPercent, triggerPercent float64) bool {
	if m.Phase != Inactive {
		return false
	}

	var armed bool
	if !m.Mirror {
		threshold := extreme.Mul(decimal.NewFromFloat(1 - activationPercent))
		armed = !price.GreaterThan(threshold)
	} else {
		threshold := extreme.Mul(decimal.NewFromFloat(1 + activationPercent))
		armed = !price.LessThan(threshold)
	}
	if !armed {
		return false
	}

	m.Phase = Armed
	m.ReferenceExtreme = extreme
	m.OppositeExtremeSinceArmed = price
	m.ActivationPercent = activationPercent
	m.TriggerPercent = triggerPercent
	return true
}

// UpdateOppositeExtreme tracks the trough (buy shape) or peak (sell shape)
// since arming.
func (m *Machine) UpdateOppositeExtreme(price decimal.Decimal) {
	if m.Phase != Armed {
		return
	}
	if !m.Mirror {
		if price.LessThan(m.OppositeExtremeSinceArmed) {
			m.OppositeExtremeSinceArmed = price
		}
	} else {
		if price.GreaterThan(m.OppositeExtremeSinceArmed) {
			m.OppositeExtremeSinceArmed = price
		}
	}
}

// CheckCancel returns true and resets to inactive when price has crossed
// back through the reference extreme, in limit mode only (§4.1
// market-vs-limit). Market orders never cancel via this path.
func (m *Machine) CheckCancel(price decimal.Decimal, orderType params.OrderType) bool {
	if m.Phase != Armed || orderType != params.OrderTypeLimit {
		return false
	}

	var cancelled bool
	if !m.Mirror {
		cancelled = price.GreaterThan(m.ReferenceExtreme)
	} else {
		cancelled = price.LessThan(m.ReferenceExtreme)
	}
	if cancelled {
		m.Phase = Inactive
	}
	return cancelled
}

// CheckFire returns true when the trigger condition holds, and always
// resets the machine to inactive when it does — regardless of whether the
// caller's gates ultimately accept the order.
func (m *Machine) CheckFire(price decimal.Decimal) bool {
	if m.Phase != Armed {
		return false
	}

	var fired bool
	if !m.Mirror {
		threshold := m.OppositeExtremeSinceArmed.Mul(decimal.NewFromFloat(1 + m.TriggerPercent))
		fired = !price.LessThan(threshold)
	} else {
		threshold := m.OppositeExtremeSinceArmed.Mul(decimal.NewFromFloat(1 - m.TriggerPercent))
		fired = !price.GreaterThan(threshold)
	}
	if fired {
		m.Phase = Inactive
	}
	return fired
}
