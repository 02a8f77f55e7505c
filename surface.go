package xr

// Surface gating. Frames are produced only while the application is resumed
// and a native surface exists; this mirrors when a headset runtime allows
// entering VR mode.

// OnSurfaceReady reports that the native surface was created.
func (r *Renderer) OnSurfaceReady() {
	r.mu.Lock()
	r.surface = true
	r.mu.Unlock()
	Logger().Info("xr: surface ready")
}

// OnSurfaceLost reports that the native surface was destroyed. Ticks return
// ErrNotReady until OnSurfaceReady.
func (r *Renderer) OnSurfaceLost() {
	r.mu.Lock()
	r.surface = false
	r.mu.Unlock()
	Logger().Info("xr: surface lost")
}

// OnResize records the window size. Eye images keep the resolution they
// were created with; the compositor scales them.
func (r *Renderer) OnResize(width, height uint32) {
	r.mu.Lock()
	r.width, r.height = width, height
	r.mu.Unlock()
	Logger().Debug("xr: surface resized", "width", width, "height", height)
}

// OnResumed reports that the application returned to the foreground.
func (r *Renderer) OnResumed() {
	r.mu.Lock()
	r.resumed = true
	r.mu.Unlock()
	Logger().Info("xr: resumed")
}

// OnPaused reports that the application left the foreground.
func (r *Renderer) OnPaused() {
	r.mu.Lock()
	r.resumed = false
	r.mu.Unlock()
	Logger().Info("xr: paused")
}

// Ready reports whether Tick will produce a frame.
func (r *Renderer) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resumed && r.surface
}

// SurfaceSize returns the last size passed to OnResize.
func (r *Renderer) SurfaceSize() (width, height uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}
