package cdpcontrol

import (
	"encoding/json"

	"github.com/dgnsrekt/musicbridge/internal/bridge"
)

// bindingName is the page global the bridge shim calls to reach Go.
const bindingName = "__musicbridgeEmit"

func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func buildIIFE(body string) string {
	return `(function(){
try {
` + body + `
} catch (err) {
return JSON.stringify({ok:false,error_code:"` + CodeEvalFailure + `",error_message:String(err && err.message || err)});
}
})()`
}

// jsAudibleProbe reports whether any unmuted media element is playing, or
// the page's media session claims to be.
func jsAudibleProbe() string {
	return buildIIFE(`
var media = document.querySelectorAll("audio, video");
for (var i = 0; i < media.length; i++) {
  var m = media[i];
  if (!m.paused && !m.ended && !m.muted && m.volume > 0 && m.readyState > 2) {
    return JSON.stringify({ok:true,data:{audible:true}});
  }
}
var ms = navigator.mediaSession;
var playing = !!(ms && ms.playbackState === "playing");
return JSON.stringify({ok:true,data:{audible:playing}});
`)
}

// jsPostMessage dispatches msg on the page's own window.
func jsPostMessage(msg []byte) string {
	return buildIIFE(`
window.postMessage(JSON.parse(` + jsString(string(msg)) + `), window.location.origin);
return JSON.stringify({ok:true});
`)
}

// jsBridgeShim forwards bridge envelopes posted on the window to the Go
// binding. Only messages from the window itself are forwarded.
func jsBridgeShim() string {
	return `(function(){
if (window.__musicbridgeShim) { return; }
window.__musicbridgeShim = true;
window.addEventListener("message", function(e) {
  if (e.source !== window) { return; }
  var d = e.data;
  if (!d || typeof d !== "object") { return; }
  if (d.direction !== ` + jsString(bridge.DirectionRequest) + ` && d.direction !== ` + jsString(bridge.DirectionResponse) + `) { return; }
  var emit = window[` + jsString(bindingName) + `];
  if (typeof emit !== "function") { return; }
  try { emit(JSON.stringify(d)); } catch (err) {}
});
})();`
}
