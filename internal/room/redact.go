package room

// redact hides hole cards viewer may not see: everyone else's, unless the
// hand reached showdown with them still in it or the run out revealed all
// hands.
func redact(h *GameState, viewer string) {
	for _, p := range h.Players {
		if p.PlayerID == viewer || h.Reveal || (h.Stage == Showdown && !p.Folded) {
			continue
		}
		p.HoleCards = nil
	}
}
