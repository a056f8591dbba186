package api

// panelHTML is a plain control panel for the control window. It speaks the
// same wire messages as any other client over /api/v1/ws.
const panelHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>musicbridge</title>
  <style>
    body { margin: 0; padding: 8px; background: #1b1b2b; color: #00e000; font: 12px monospace; user-select: none; }
    #title { white-space: nowrap; overflow: hidden; text-overflow: ellipsis; }
    #time { font-size: 20px; }
    button { background: #2b2b40; color: #ddd; border: 1px solid #555; font: 11px monospace; padding: 2px 6px; }
    input[type=range] { width: 100%; }
  </style>
</head>
<body>
  <div id="title">not connected</div>
  <div id="time">--:--</div>
  <input id="seek" type="range" min="0" max="0" step="1" />
  <div>
    <button data-cmd="prev">|&lt;</button>
    <button data-cmd="play">&gt;</button>
    <button data-cmd="pause">||</button>
    <button data-cmd="stop">[]</button>
    <button data-cmd="next">&gt;|</button>
    <button data-cmd="toggleShuffle">shuf</button>
    <button data-cmd="toggleRepeat">rep</button>
    <button id="open">open</button>
  </div>
<script>
(function () {
  var ws, seq = 0, waiting = {};
  function send(msg) {
    return new Promise(function (resolve) {
      if (!ws || ws.readyState !== 1) { resolve(null); return; }
      msg.requestId = String(++seq);
      waiting[msg.requestId] = resolve;
      ws.send(JSON.stringify(msg));
    });
  }
  function clock(s) {
    s = Math.max(0, Math.floor(s || 0));
    var m = Math.floor(s / 60), r = s % 60;
    return m + ":" + (r < 10 ? "0" : "") + r;
  }
  function render(st) {
    var title = document.getElementById("title");
    if (!st || !st.connected) { title.textContent = "not connected"; document.getElementById("time").textContent = "--:--"; return; }
    title.textContent = (st.artist ? st.artist + " - " : "") + (st.title || "") + " [" + st.service + "]";
    document.getElementById("time").textContent = clock(st.positionSeconds);
    var seek = document.getElementById("seek");
    seek.max = Math.floor(st.durationSeconds || 0);
    if (document.activeElement !== seek) seek.value = Math.floor(st.positionSeconds || 0);
  }
  function connect() {
    ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/api/v1/ws");
    ws.onmessage = function (e) {
      var reply = JSON.parse(e.data), done = waiting[reply.requestId];
      if (done) { delete waiting[reply.requestId]; done(reply.data); }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  document.querySelectorAll("button[data-cmd]").forEach(function (b) {
    b.addEventListener("click", function () { send({type: "COMMAND", command: b.dataset.cmd}); });
  });
  document.getElementById("open").addEventListener("click", function () { send({type: "OPEN_MUSIC"}); });
  document.getElementById("seek").addEventListener("change", function (e) {
    send({type: "COMMAND", command: "seekTo", value: Number(e.target.value)});
  });
  connect();
  setInterval(function () { send({type: "GET_STATE"}).then(render); }, 1000);
})();
</script>
</body>
</html>`
