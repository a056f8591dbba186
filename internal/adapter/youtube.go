package adapter

import (
	"github.com/dgnsrekt/musicbridge/internal/bridge"
	"github.com/dgnsrekt/musicbridge/internal/service"
)

// YouTube Music exposes its player API on #movie_player. Quality comes from
// the player response's best adaptive audio format.

const jsYouTubePlayer = `
var p = document.getElementById("movie_player");
if (!p || typeof p.getPlayerState !== "function") return _fail("` + codeUnavailable + `", "no #movie_player");
`

const jsYouTubeQueueItems = `
function _ytQueueItems() {
  return _qa("ytmusic-player-queue-item").filter(_visible);
}
`

const ytShuffleButtons = `["[aria-label='Turn on shuffle']", "[aria-label='Turn off shuffle']"]`
const ytRepeatButtons = `["[aria-label='Turn on repeat']", "[aria-label='Turn off repeat']", "[aria-label='Turn off repeat one']"]`

func youtubeProfile() *profile {
	playerSource := newScript("youtube.player", jsYouTubePlayer+`
var ps = p.getPlayerState();
var state = "stopped";
if (ps === 1 || ps === 3) state = "playing";
else if (ps === 2) state = "paused";
var muted = typeof p.isMuted === "function" && p.isMuted();
var out = {
  playState: state,
  position: typeof p.getCurrentTime === "function" ? _num(p.getCurrentTime()) : null,
  duration: typeof p.getDuration === "function" ? _num(p.getDuration()) : null,
  volume: muted ? 0 : (typeof p.getVolume === "function" ? _num(p.getVolume()) : null)
};
try {
  var resp = typeof p.getPlayerResponse === "function" ? p.getPlayerResponse() : null;
  var formats = resp && resp.streamingData && resp.streamingData.adaptiveFormats || [];
  var best = null;
  for (var i = 0; i < formats.length; i++) {
    var f = formats[i];
    if (!f.mimeType || f.mimeType.indexOf("audio") !== 0) continue;
    if (!best || (f.bitrate && f.bitrate > best.bitrate)) best = f;
  }
  if (best && best.bitrate) out.bitrate = Math.round(best.bitrate / 1000);
  if (best && best.audioSampleRate) out.sampleRate = Math.round(parseInt(best.audioSampleRate, 10) / 1000);
} catch(_) {}
return _ok(out);
`)

	barSource := newScript("youtube.playerbar", `
var out = {};
out.title = _text(_first([
  "ytmusic-player-bar .title.ytmusic-player-bar",
  "ytmusic-player-bar .content-info-wrapper .title",
  ".ytmusic-player-bar .title",
  "yt-formatted-string.title"
]));
out.artist = _text(_first([
  "ytmusic-player-bar .byline.ytmusic-player-bar",
  "ytmusic-player-bar .content-info-wrapper .byline",
  ".ytmusic-player-bar .byline",
  "yt-formatted-string.byline"
]));
var sb = _first(`+ytShuffleButtons+`);
if (sb) out.shuffle = sb.getAttribute("aria-label") === "Turn off shuffle";
var rb = _first(`+ytRepeatButtons+`);
if (rb) {
  var label = rb.getAttribute("aria-label");
  out.repeat = label === "Turn off repeat" ? "all" : (label === "Turn off repeat one" ? "one" : "off");
}
return _ok(out);
`)

	queueSource := newScript("youtube.queue", jsYouTubeQueueItems+`
var items = _ytQueueItems();
var tracks = [];
var current = null;
for (var i = 0; i < items.length; i++) {
  var it = items[i];
  var title = _text(_within(it, ["yt-formatted-string.song-title", ".song-title"])) || "";
  var artist = _text(_within(it, ["yt-formatted-string.byline", ".byline"])) || "";
  var dur = _text(_within(it, ["yt-formatted-string.duration", ".duration"])) || "";
  var pbs = it.getAttribute("play-button-state");
  if (it.hasAttribute("selected") || pbs === "playing" || pbs === "paused") current = i;
  tracks.push({title: title, artist: artist, duration: dur});
}
return _ok({tracks: tracks, current: current});
`)

	playlistSource := newScript("youtube.playlist", jsYouTubePlayer+`
var ids = typeof p.getPlaylist === "function" ? (p.getPlaylist() || []) : [];
var idx = typeof p.getPlaylistIndex === "function" ? p.getPlaylistIndex() : -1;
var cur = typeof p.getVideoData === "function" ? p.getVideoData() : null;
var tracks = [];
for (var i = 0; i < ids.length; i++) {
  var t = {title: String(ids[i]), artist: "", duration: ""};
  if (cur && i === idx) {
    t.title = cur.title || t.title;
    t.artist = cur.author || "";
  }
  tracks.push(t);
}
return _ok({tracks: tracks, current: idx >= 0 ? idx : null});
`)

	api := func(name, body string) strategy {
		return call("player api", newScript("youtube.api."+name, jsYouTubePlayer+body))
	}
	click := func(name, sels, what string) strategy {
		return call("button", newScript("youtube.click."+name, `return _click(`+sels+`, `+jsString(what)+`);`))
	}
	toggle := func(name string, wantPaused bool) strategy {
		guard := "false"
		if wantPaused {
			guard = "true"
		}
		return call("button", newScript("youtube.toggle."+name, jsMediaPaused+`
if (_mediaPaused() === `+guard+`) return _ok({});
return _click(["ytmusic-player-bar #play-pause-button", "#play-pause-button"], "play/pause button");
`))
	}

	return &profile{
		name:           service.YouTube,
		stateSources:   []script{playerSource, mediaSessionSource, barSource, mediaElementSource},
		requiredSource: playerSource.name,
		nominal:        nominalQuality(128, 44),
		queueSources:   []script{queueSource, playlistSource},

		matchCurrentByTitle: true,

		commands: map[bridge.Verb][]strategy{
			bridge.VerbPlay: {
				api("play", `if (typeof p.playVideo !== "function") return _fail("`+codeUnavailable+`", "playVideo missing");
p.playVideo(); return _ok({});`),
				toggle("play", false),
			},
			bridge.VerbPause: {
				api("pause", `if (typeof p.pauseVideo !== "function") return _fail("`+codeUnavailable+`", "pauseVideo missing");
p.pauseVideo(); return _ok({});`),
				toggle("pause", true),
			},
			bridge.VerbStop: {
				api("stop", `if (typeof p.pauseVideo !== "function" || typeof p.seekTo !== "function") return _fail("`+codeUnavailable+`", "pauseVideo/seekTo missing");
p.pauseVideo(); p.seekTo(0, true); return _ok({});`),
			},
			bridge.VerbNext: {
				api("next", `if (typeof p.nextVideo !== "function") return _fail("`+codeUnavailable+`", "nextVideo missing");
p.nextVideo(); return _ok({});`),
				click("next", `["ytmusic-player-bar .next-button", ".next-button"]`, "next button"),
			},
			bridge.VerbPrev: {
				api("prev", `if (typeof p.previousVideo !== "function") return _fail("`+codeUnavailable+`", "previousVideo missing");
p.previousVideo(); return _ok({});`),
				click("prev", `["ytmusic-player-bar .previous-button", ".previous-button"]`, "previous button"),
			},
			bridge.VerbSeekTo: {
				api("seek", `if (typeof p.seekTo !== "function") return _fail("`+codeUnavailable+`", "seekTo missing");
p.seekTo(arg.value, true); return _ok({});`),
				pointer("progress bar", newScript("youtube.rect.progress", `return _rect(["ytmusic-player-bar #progress-bar", "#progress-bar"], "progress bar");`), true),
			},
			bridge.VerbSetVolume: {
				api("volume", `if (typeof p.setVolume !== "function") return _fail("`+codeUnavailable+`", "setVolume missing");
if (typeof p.unMute === "function") p.unMute();
p.setVolume(arg.value); return _ok({});`),
				pointer("volume slider", newScript("youtube.rect.volume", `return _rect(["ytmusic-player-bar #volume-slider", "#volume-slider"], "volume slider");`), false),
			},
			bridge.VerbToggleShuffle: {
				click("shuffle", ytShuffleButtons, "shuffle button"),
			},
			bridge.VerbToggleRepeat: {
				click("repeat", ytRepeatButtons, "repeat button"),
			},
			bridge.VerbPlayAt: {
				call("queue row", newScript("youtube.queue.play", jsYouTubeQueueItems+`
var it = _ytQueueItems()[arg.value];
if (!it) return _fail("`+codeNotFound+`", "no visible queue row " + arg.value);
var target = _within(it, ["tp-yt-paper-icon-button#play-button", "#play-button"]) ||
  _within(it, ["yt-formatted-string.song-title a", "yt-formatted-string.song-title", ".song-title"]) || it;
target.click();
return _ok({});
`)),
				api("playAt", `if (typeof p.playVideoAt !== "function") return _fail("`+codeUnavailable+`", "playVideoAt missing");
p.playVideoAt(arg.value); return _ok({});`),
			},
		},
	}
}

func nominalQuality(kbps, khz float64) reading {
	return reading{Bitrate: &kbps, SampleRate: &khz}
}
