// Package xr renders stereo frames for a head-mounted display and hands them
// to a display compositor.
//
// # Overview
//
// A [Renderer] drives two independent eye pipelines. Each eye owns a ring of
// compositor-provided swap-chain images, one render target per image, and
// one completion-guarded command slot per image. Every call to [Renderer.Tick]
// renders both eyes and submits one frame:
//
//	select   slot = cursor
//	reclaim  wait for the slot's previous submission, reset it
//	record   shader-read-only -> color-attachment, draw, -> shader-read-only
//	submit   queue the command buffer, remember its submission index
//	advance  cursor = (cursor+1) mod slots
//	compose  predict display time and pose, SubmitFrame
//
// The first tick submits a loading frame instead of rendering, which lets
// the compositor flush whatever it showed before.
//
// # Quick Start
//
//	ctx, err := gpu.NewContext()
//	...
//	comp := sim.New(ctx.Device())
//	session := comp.BeginSession()
//
//	r, err := xr.New(ctx, comp, session, xr.WithSlotCount(3))
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	for {
//	    if err := r.Tick(context.Background()); err != nil && xr.IsFatal(err) {
//	        return err
//	    }
//	}
//
// # Errors
//
// GPU failures during reclaim, record or submit are fatal and returned as
// [*FrameError]. A rejected SubmitFrame only drops that frame: it is logged,
// counted in [Stats], and the next tick proceeds normally.
//
// # Logging
//
// xr is silent by default. Use [SetLogger] to route diagnostics to a
// [log/slog] handler.
package xr
