package portfolio

import "time"

// enqueueDeferredSell would append a blocked sell candidate to the retry
// queue instead of dropping it (§4.3.3). It is unreachable: Config.Validate
// rejects EnableDeferredSelling=true, and nothing in RunPortfolio calls this
// today — a blocked sell is simply not attempted again until its own
// trailing-stop machine re-fires. Kept as the landing spot for that
// mechanism so the queue shape (retry count, age) doesn't need to be
// invented later under time pressure.
func enqueueDeferredSell(s *State, symbol string, day time.Time) {
	if !s.enableDeferredSelling {
		return
	}
	s.DeferredSells = append(s.DeferredSells, DeferredSell{
		Symbol:   symbol,
		QueuedAt: day,
	})
}

// ageDeferredSells advances AgeDays for every queued entry by one trading
// day. A caller would run this once per day alongside the main loop and
// drop entries past some retirement threshold; no threshold is specified
// because nothing populates the queue yet.
func ageDeferredSells(s *State) {
	if !s.enableDeferredSelling {
		return
	}
	for i := range s.DeferredSells {
		s.DeferredSells[i].AgeDays++
	}
}
