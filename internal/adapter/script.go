package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope error codes raised by page scripts.
const (
	codeUnavailable = "API_UNAVAILABLE"
	codeNotFound    = "NOT_FOUND"
	codeEvalFailure = "EVAL_FAILURE"
)

// scriptMarker prefixes every generated expression so a script can be
// recognised in CDP logs and by test pages.
const scriptMarker = "musicbridge:"

// script is one named page expression body. The body runs inside an IIFE
// with the helpers below and an `arg` object in scope, and must return an
// envelope built with _ok or _fail.
type script struct {
	name string
	body string
}

func newScript(name, body string) script { return script{name: name, body: body} }

// js renders the full expression. op may be nil for reads.
func (s script) js(op *operand) string {
	arg := "null"
	if op != nil {
		arg = jsJSON(map[string]float64{
			"value":    op.Value,
			"fraction": op.Fraction,
			"duration": op.Duration,
		})
	}
	return "/* " + scriptMarker + s.name + " */\n" +
		buildIIFE(false, jsPageHelpers+"var arg = "+arg+";\n"+s.body)
}

const jsPageHelpers = `
function _ok(data) { return JSON.stringify({ok:true,data:data === undefined ? null : data}); }
function _fail(code, msg) { return JSON.stringify({ok:false,error_code:code,error_message:msg}); }
function _q(sel) { try { return document.querySelector(sel); } catch(_) { return null; } }
function _qa(sel) { try { return Array.prototype.slice.call(document.querySelectorAll(sel)); } catch(_) { return []; } }
function _first(sels) {
  for (var i = 0; i < sels.length; i++) { var el = _q(sels[i]); if (el) return el; }
  return null;
}
function _within(root, sels) {
  for (var i = 0; i < sels.length; i++) {
    var el = null;
    try { el = root.querySelector(sels[i]); } catch(_) {}
    if (el) return el;
  }
  return null;
}
function _text(el) {
  if (!el) return null;
  var t = String(el.textContent || "").trim();
  return t === "" ? null : t;
}
function _num(v) { return (typeof v === "number" && isFinite(v)) ? v : null; }
function _visible(el) { return !!el && el.offsetParent !== null && el.offsetHeight > 0; }
function _click(sels, what) {
  var el = _first(sels);
  if (!el) return _fail("` + codeNotFound + `", "no " + what);
  el.click();
  return _ok({});
}
function _rect(sels, what) {
  var el = _first(sels);
  if (!el) return _fail("` + codeNotFound + `", "no " + what);
  var r = el.getBoundingClientRect();
  return _ok({left:r.left,top:r.top,width:r.width,height:r.height});
}
`

func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func jsJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func buildIIFE(async bool, body string) string {
	prefix := "(function(){\n"
	if async {
		prefix = "(async function(){\n"
	}
	return prefix + `try {
` + body + `
} catch (err) {
return JSON.stringify({ok:false,error_code:"` + codeEvalFailure + `",error_message:String(err && err.message || err)});
}
})()`
}

// strategy is one way of carrying out a verb.
type strategy struct {
	name string
	run  func(ctx context.Context, page Page, op operand) error
}

// call evaluates s and succeeds when it returns an ok envelope.
func call(name string, s script) strategy {
	return strategy{
		name: name,
		run: func(ctx context.Context, page Page, op operand) error {
			return page.Eval(ctx, s.js(&op), nil)
		},
	}
}

// elementRect is the viewport box reported by _rect.
type elementRect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

var errDurationUnknown = errors.New("track duration unknown")

// pointer locates a bar with s and clicks it at op.Fraction of its width.
// When needsDuration is set the strategy refuses to guess without one.
func pointer(name string, s script, needsDuration bool) strategy {
	return strategy{
		name: name,
		run: func(ctx context.Context, page Page, op operand) error {
			if needsDuration && op.Duration <= 0 {
				return errDurationUnknown
			}
			var r elementRect
			if err := page.Eval(ctx, s.js(&op), &r); err != nil {
				return err
			}
			if r.Width <= 0 || r.Height <= 0 {
				return fmt.Errorf("%s has no size", s.name)
			}
			x := r.Left + r.Width*clamp(op.Fraction, 0, 1)
			y := r.Top + r.Height/2
			return page.Click(ctx, x, y)
		},
	}
}

// sequence runs every strategy in order and fails on the first failure.
func sequence(name string, steps ...strategy) strategy {
	return strategy{
		name: name,
		run: func(ctx context.Context, page Page, op operand) error {
			for _, s := range steps {
				if err := s.run(ctx, page, op); err != nil {
					return fmt.Errorf("%s: %w", s.name, err)
				}
			}
			return nil
		},
	}
}
