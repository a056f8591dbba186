package adapter

// Sources every service page can offer.

var mediaSessionSource = newScript("media-session", `
var ms = navigator.mediaSession;
if (!ms) return _fail("`+codeUnavailable+`", "no media session");
var out = {};
if (ms.metadata) {
  out.title = ms.metadata.title || null;
  out.artist = ms.metadata.artist || null;
}
if (ms.playbackState === "playing") out.playState = "playing";
else if (ms.playbackState === "paused") out.playState = "paused";
return _ok(out);
`)

var mediaElementSource = newScript("media-element", `
var m = _q("video") || _q("audio");
if (!m) return _fail("`+codeUnavailable+`", "no media element");
var out = {
  position: _num(m.currentTime),
  duration: _num(m.duration),
  volume: m.muted ? 0 : Math.round(m.volume * 100)
};
if (!m.paused) out.playState = "playing";
else if (m.currentTime > 0) out.playState = "paused";
return _ok(out);
`)

// jsMediaPaused defines _mediaPaused, the media element's paused flag or
// null without one. Toggle buttons consult it so play and pause are
// idempotent.
const jsMediaPaused = `
function _mediaPaused() {
  var m = _q("video") || _q("audio");
  return m ? !!m.paused : null;
}
`
