package crawler

// locatorSet tracks which article locators a day has already queued.
type locatorSet struct {
	seen map[string]struct{}
}

func newLocatorSet(capacity int) *locatorSet {
	return &locatorSet{seen: make(map[string]struct{}, capacity)}
}

// MarkIfNew stores the locator if it has not been seen before and returns true.
func (s *locatorSet) MarkIfNew(locator string) bool {
	if locator == "" {
		return false
	}
	if _, ok := s.seen[locator]; ok {
		return false
	}
	s.seen[locator] = struct{}{}
	return true
}

// dedupeLocators keeps the first occurrence of every locator, in discovery
// order, and reports how many were dropped.
func dedupeLocators(discovered []string) (unique []string, dropped int) {
	set := newLocatorSet(len(discovered))
	unique = make([]string, 0, len(discovered))
	for _, loc := range discovered {
		if set.MarkIfNew(loc) {
			unique = append(unique, loc)
			continue
		}
		dropped++
	}
	return unique, dropped
}
