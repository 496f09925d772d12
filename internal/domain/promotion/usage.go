package promotion

// UsageSnapshot carries the usage counters known at evaluation time.
// CustomerUses is nil when the per-customer count is unknown, which is
// always the case for walk-in orders.
type UsageSnapshot struct {
	CustomerUses *int
}

// CheckUsage is the advisory client-side usage gate. The authoritative
// enforcement lives in Repository.IncrementUsage; this gate only
// prevents obviously doomed apply attempts.
//
// A per-customer cap with no known customer count cannot be decided
// here and yields ErrUsageDeferred rather than a claim of eligibility.
func CheckUsage(p *Promotion, customerID string, snap UsageSnapshot) error {
	if p.MaxTotalUsage > 0 && p.CurrentTotalUsage >= p.MaxTotalUsage {
		return ErrUsageExhausted
	}

	if p.MaxUsagePerCustomer > 0 {
		if customerID == "" {
			return ErrUsageDeferred
		}
		if snap.CustomerUses == nil {
			return ErrUsageDeferred
		}
		if *snap.CustomerUses >= p.MaxUsagePerCustomer {
			return ErrUsageExhausted
		}
	}
	return nil
}
