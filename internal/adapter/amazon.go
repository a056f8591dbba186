package adapter

import (
	"github.com/dgnsrekt/musicbridge/internal/bridge"
	"github.com/dgnsrekt/musicbridge/internal/service"
)

// Amazon Music exposes a maestro controller on the window in some builds;
// otherwise the player bar's music-button web components are used.

const jsAmazonMaestro = `
var mc = window.maestroController || window.maestro || null;
if (!mc) return _fail("` + codeUnavailable + `", "no maestro controller");
`

const (
	amPlay     = `["music-button[icon-name='play']", "[data-testid='play-button']", "button[aria-label='Play']"]`
	amPause    = `["music-button[icon-name='pause']", "[data-testid='pause-button']", "button[aria-label='Pause']"]`
	amNext     = `["music-button[icon-name='next']", "[data-testid='next-button']", "button[aria-label='Next']"]`
	amPrev     = `["music-button[icon-name='previous']", "[data-testid='previous-button']", "button[aria-label='Previous']"]`
	amShuffle  = `["music-button[icon-name='shuffle']", "[data-testid='shuffle-button']", "button[aria-label*='huffle']"]`
	amRepeat   = `["music-button[icon-name='repeat']", "music-button[icon-name='repeat-one']", "[data-testid='repeat-button']", "button[aria-label*='epeat']"]`
	amVolume   = `["input[type='range'][aria-label*='olume']", "music-volume-slider input"]`
	amProgress = `["music-progress-bar", "[class*='progressBar']", "[data-testid='progress-bar']"]`
)

func amazonProfile() *profile {
	maestroSource := newScript("amazon.maestro", jsAmazonMaestro+`
var out = {};
try {
  var ps = typeof mc.getPlaybackState === "function" ? mc.getPlaybackState() : null;
  if (ps === "PLAYING") out.playState = "playing";
  else if (ps === "PAUSED") out.playState = "paused";
  else if (ps) out.playState = "stopped";
} catch(_) {}
try { if (typeof mc.getCurrentTime === "function") out.position = _num(mc.getCurrentTime()); } catch(_) {}
try { if (typeof mc.getDuration === "function") out.duration = _num(mc.getDuration()); } catch(_) {}
try {
  if (typeof mc.getVolume === "function") {
    var v = _num(mc.getVolume());
    if (v !== null) out.volume = Math.round(v * 100);
  }
} catch(_) {}
return _ok(out);
`)

	barSource := newScript("amazon.playerbar", `
var out = {};
var te = _first([
  "music-horizontal-item[now-playing] [slot='primaryText']",
  "[class*='trackTitle']",
  "[data-testid='track-title']",
  ".playerBarNowPlayingTitle",
  "music-text-header[primary-text]"
]);
if (te) out.title = te.getAttribute("primary-text") || _text(te);
var ae = _first([
  "music-horizontal-item[now-playing] [slot='secondaryText']",
  "[class*='artistName']",
  "[data-testid='track-artist']",
  ".playerBarNowPlayingArtist"
]);
if (ae) out.artist = ae.getAttribute("secondary-text") || _text(ae);
var pauseBtn = _first(`+amPause+`);
var playBtn = _first(`+amPlay+`);
if (pauseBtn && pauseBtn.offsetParent !== null) out.playState = "playing";
else if (playBtn && playBtn.offsetParent !== null) out.playState = "paused";
out.positionText = _text(_first(["[class*='elapsed']", "[data-testid='playback-position']", ".playbackControls_timeline_elapsedTime"]));
out.durationText = _text(_first(["[class*='duration']:not([class*='elapsed'])", "[data-testid='playback-duration']", ".playbackControls_timeline_duration"]));
var slider = _first(`+amVolume+`);
if (slider) out.volume = Math.round(parseFloat(slider.value) * 100);
function _lit(b) {
  return b.getAttribute("aria-checked") === "true" || b.classList.contains("active") || b.getAttribute("variant") === "accent";
}
var sb = _first(`+amShuffle+`);
if (sb) out.shuffle = _lit(sb);
var rb = _first(`+amRepeat+`);
if (rb) out.repeat = rb.getAttribute("icon-name") === "repeat-one" ? "one" : (_lit(rb) ? "all" : "off");
return _ok(out);
`)

	queueSource := newScript("amazon.queue", `
var items = _qa("music-horizontal-item");
var tracks = [];
var current = null;
for (var i = 0; i < items.length; i++) {
  var it = items[i];
  var title = it.getAttribute("primary-text") || "";
  if (!title) continue;
  if (it.hasAttribute("now-playing") || it.hasAttribute("is-playing")) current = tracks.length;
  tracks.push({
    title: title,
    artist: it.getAttribute("secondary-text") || "",
    duration: it.getAttribute("secondary-text-2") || ""
  });
}
return _ok({tracks: tracks, current: current});
`)

	api := func(name, body string) strategy {
		return call("maestro", newScript("amazon.api."+name, jsAmazonMaestro+body))
	}
	click := func(name, sels, what string) strategy {
		return call("button", newScript("amazon.click."+name, `return _click(`+sels+`, `+jsString(what)+`);`))
	}
	method := func(fn string) string {
		return `if (typeof mc.` + fn + ` !== "function") return _fail("` + codeUnavailable + `", "` + fn + ` missing");
`
	}

	return &profile{
		name:         service.Amazon,
		stateSources: []script{maestroSource, mediaSessionSource, barSource, mediaElementSource},
		nominal:      nominalQuality(256, 44),
		queueSources: []script{queueSource},

		commands: map[bridge.Verb][]strategy{
			bridge.VerbPlay: {
				api("play", method("play")+`mc.play(); return _ok({});`),
				click("play", amPlay, "play button"),
			},
			bridge.VerbPause: {
				api("pause", method("pause")+`mc.pause(); return _ok({});`),
				click("pause", amPause, "pause button"),
			},
			bridge.VerbStop: {
				api("stop", method("pause")+method("seekTo")+`mc.pause(); mc.seekTo(0); return _ok({});`),
				click("stop", amPause, "pause button"),
			},
			bridge.VerbNext: {
				api("next", method("next")+`mc.next(); return _ok({});`),
				click("next", amNext, "next button"),
			},
			bridge.VerbPrev: {
				api("prev", method("previous")+`mc.previous(); return _ok({});`),
				click("prev", amPrev, "previous button"),
			},
			bridge.VerbSeekTo: {
				api("seek", method("seekTo")+`mc.seekTo(arg.value); return _ok({});`),
				pointer("progress bar", newScript("amazon.rect.progress", `return _rect(`+amProgress+`, "progress bar");`), true),
			},
			bridge.VerbSetVolume: {
				api("volume", method("setVolume")+`mc.setVolume(arg.value / 100); return _ok({});`),
				call("range input", newScript("amazon.volume.input", `
var slider = _first(`+amVolume+`);
if (!slider) return _fail("`+codeNotFound+`", "no volume control");
var setter = Object.getOwnPropertyDescriptor(HTMLInputElement.prototype, "value").set;
setter.call(slider, arg.value / 100);
slider.dispatchEvent(new Event("input", {bubbles: true}));
slider.dispatchEvent(new Event("change", {bubbles: true}));
return _ok({});
`)),
			},
			bridge.VerbToggleShuffle: {click("shuffle", amShuffle, "shuffle button")},
			bridge.VerbToggleRepeat:  {click("repeat", amRepeat, "repeat button")},
			bridge.VerbPlayAt: {
				call("queue row", newScript("amazon.queue.play", `
var items = _qa("music-horizontal-item").filter(function(it) { return !!it.getAttribute("primary-text"); });
var it = items[arg.value];
if (!it) return _fail("`+codeNotFound+`", "no queue row " + arg.value);
it.click();
return _ok({});
`)),
			},
		},
	}
}
