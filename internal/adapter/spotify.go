package adapter

import (
	"github.com/dgnsrekt/musicbridge/internal/bridge"
	"github.com/dgnsrekt/musicbridge/internal/service"
)

// The Spotify web player has no public page API; everything is read from
// the media session and the now-playing bar's data-testid hooks.

const (
	spPlayPause = `["[data-testid='control-button-playpause']"]`
	spShuffle   = `["[data-testid='control-button-shuffle']"]`
	spRepeat    = `["[data-testid='control-button-repeat']"]`
	spProgress  = `["[data-testid='playback-progressbar'] [data-testid='progress-bar']", "[data-testid='progress-bar']"]`
	spVolume    = `["[data-testid='volume-bar'] [data-testid='progress-bar']", "[data-testid='volume-bar']"]`
)

const jsSpotifyRows = `
function _spRows() {
  var rows = _qa("[data-testid='queue-track-control']");
  if (rows.length === 0) rows = _qa("[data-testid='tracklist-row']");
  return rows;
}
`

func spotifyProfile() *profile {
	barSource := newScript("spotify.nowplaying", `
var out = {};
out.title = _text(_first([
  "[data-testid='context-item-info-title']",
  "[data-testid='now-playing-widget'] [dir='auto'] a"
]));
out.artist = _text(_first([
  "[data-testid='context-item-info-artist']",
  "[data-testid='context-item-info-subtitles'] a"
]));
var pp = _first(`+spPlayPause+`);
if (pp) {
  var label = (pp.getAttribute("aria-label") || "").toLowerCase();
  if (label.indexOf("pause") !== -1) out.playState = "playing";
  else if (label.indexOf("play") !== -1) out.playState = "paused";
}
var sb = _first(`+spShuffle+`);
if (sb) out.shuffle = sb.getAttribute("aria-checked") === "true";
var rb = _first(`+spRepeat+`);
if (rb) {
  if (rb.getAttribute("aria-checked") !== "true") out.repeat = "off";
  else out.repeat = (rb.getAttribute("aria-label") || "").toLowerCase().indexOf("one") !== -1 ? "one" : "all";
}
var vb = _q("[data-testid='volume-bar']");
if (vb) {
  var bar = _within(vb, ["[data-testid='progress-bar']"]);
  var m = bar ? String(bar.style.cssText || "").match(/--progress-bar-transform:\s*([\d.]+)%/) : null;
  if (m) out.volume = Math.round(parseFloat(m[1]));
  else {
    var range = _within(vb, ["input[type='range']"]);
    if (range) out.volume = Math.round(parseFloat(range.value) * 100);
  }
}
out.positionText = _text(_q("[data-testid='playback-position']"));
out.durationText = _text(_q("[data-testid='playback-duration']"));
return _ok(out);
`)

	queueSource := newScript("spotify.queue", jsSpotifyRows+`
var rows = _spRows();
var tracks = [];
var current = null;
for (var i = 0; i < rows.length; i++) {
  var row = rows[i];
  var title = _text(_within(row, ["[data-testid='internal-track-link'] div", "a[href*='/track/'] div"])) || "";
  var artist = _text(_within(row, ["[data-testid='tracklist-row__artist-name-cell'] a", "span a[href*='/artist/']"])) || "";
  var dur = _text(_within(row, ["[data-testid='tracklist-row__duration']"])) || "";
  if (_within(row, ["[aria-label='Now playing']"]) || row.getAttribute("aria-current") === "true") current = i;
  tracks.push({title: title, artist: artist, duration: dur});
}
return _ok({tracks: tracks, current: current});
`)

	click := func(name, sels, what string) strategy {
		return call("button", newScript("spotify.click."+name, `return _click(`+sels+`, `+jsString(what)+`);`))
	}
	// toggle clicks play/pause unless the button already shows the wanted state.
	toggle := func(name, whenLabel string) strategy {
		return call("button", newScript("spotify.toggle."+name, `
var pp = _first(`+spPlayPause+`);
if (!pp) return _fail("`+codeNotFound+`", "no play/pause button");
var label = (pp.getAttribute("aria-label") || "").toLowerCase();
if (label.indexOf(`+jsString(whenLabel)+`) === -1) return _ok({});
pp.click();
return _ok({});
`))
	}
	seekBar := newScript("spotify.rect.progress", `return _rect(`+spProgress+`, "progress bar");`)

	return &profile{
		name:         service.Spotify,
		stateSources: []script{mediaSessionSource, barSource},
		nominal:      nominalQuality(256, 44),
		queueSources: []script{queueSource},

		commands: map[bridge.Verb][]strategy{
			bridge.VerbPlay:  {toggle("play", "play")},
			bridge.VerbPause: {toggle("pause", "pause")},
			bridge.VerbStop: {
				sequence("pause and rewind", toggle("pause", "pause"), pointer("progress bar", seekBar, false)),
			},
			bridge.VerbNext:          {click("next", `["[data-testid='control-button-skip-forward']"]`, "next button")},
			bridge.VerbPrev:          {click("prev", `["[data-testid='control-button-skip-back']"]`, "previous button")},
			bridge.VerbSeekTo:        {pointer("progress bar", seekBar, true)},
			bridge.VerbSetVolume:     {pointer("volume bar", newScript("spotify.rect.volume", `return _rect(`+spVolume+`, "volume bar");`), false)},
			bridge.VerbToggleShuffle: {click("shuffle", spShuffle, "shuffle button")},
			bridge.VerbToggleRepeat:  {click("repeat", spRepeat, "repeat button")},
			bridge.VerbPlayAt: {
				call("queue row", newScript("spotify.queue.play", jsSpotifyRows+`
var row = _spRows()[arg.value];
if (!row) return _fail("`+codeNotFound+`", "no queue row " + arg.value);
var btn = _within(row, ["button[data-testid='play-button']", "button"]);
(btn || row).click();
return _ok({});
`)),
			},
		},
	}
}
