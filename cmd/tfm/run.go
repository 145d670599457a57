package main

// Run drives the cooperative event loop: poll one terminal event, fold it
// through the Coordinator, redraw if due, repeat until "quit" fires
// (spec.md §4.9, "Per tick: drain pending input events; fold each event
// through the topmost mode...; redraw if dirty and the throttle allows").
func (a *app) Run() error {
	a.coord.MarkDirty()
	a.render()

	for !quitRequested {
		key, resize, isResize, ok := a.screen.PollEvent()
		if !ok {
			return nil
		}
		if isResize {
			a.coord.OnResize(resize)
		} else if key.Code != "" || key.HasChar {
			if err := a.coord.HandleKey(key); err != nil {
				a.logger.Warnf("handle key: %v", err)
			}
		}
		a.drainSearchResult()
		a.coord.SweepJobs()
		if a.coord.ShouldRedraw() {
			a.render()
		}
	}
	return nil
}
