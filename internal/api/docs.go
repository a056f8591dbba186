package api

const docsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="referrer" content="same-origin" />
  <meta name="viewport" content="width=device-width, initial-scale=1, shrink-to-fit=no" />
  <title>musicbridge API</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
</head>
<body style="height: 100vh; margin: 0; position: relative;">
  <a href="/docs/ws" style="
    position: fixed;
    top: 12px;
    right: 16px;
    z-index: 9999;
    background: #161b22;
    border: 1px solid #30363d;
    border-radius: 6px;
    color: #58a6ff;
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
    font-size: 12px;
    padding: 5px 12px;
    text-decoration: none;
  ">WebSocket messages →</a>
  <elements-api
    apiDescriptionUrl="/openapi.json"
    router="hash"
    layout="sidebar"
    tryItCredentialsPolicy="same-origin"
    darkMode
  />
</body>
</html>`

const wsDocsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>WebSocket messages · musicbridge</title>
  <style>
    body { margin: 0 auto; max-width: 820px; padding: 24px; background: #0d1117; color: #c9d1d9;
           font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; font-size: 14px; line-height: 1.6; }
    h1, h2 { color: #e6edf3; }
    code, pre { background: #161b22; border: 1px solid #30363d; border-radius: 6px; }
    code { padding: 1px 5px; }
    pre { padding: 12px; overflow-x: auto; }
    td, th { border-bottom: 1px solid #30363d; padding: 6px 10px; text-align: left; vertical-align: top; }
    a { color: #58a6ff; }
  </style>
</head>
<body>
  <p><a href="/docs">← REST API</a></p>
  <h1>WebSocket messages</h1>
  <p>Connect to <code>/api/v1/ws</code> and send one JSON wire message per frame. Add a
  <code>requestId</code> to match answers when several requests are in flight; it is echoed back.</p>
  <pre>{"requestId": "7", "type": "COMMAND", "command": "seekTo", "value": 90}</pre>
  <pre>{"requestId": "7", "type": "COMMAND", "data": {"ok": true}}</pre>
  <h2>Types</h2>
  <table>
    <tr><th>type</th><th>fields</th><th>data</th></tr>
    <tr><td><code>GET_STATE</code></td><td></td><td><code>{connected, service?, playState, positionSeconds, ...}</code> or <code>{connected:false}</code></td></tr>
    <tr><td><code>GET_QUEUE</code></td><td></td><td><code>{tracks, currentIndex}</code> or <code>null</code></td></tr>
    <tr><td><code>COMMAND</code></td><td><code>command</code>, <code>value?</code></td><td><code>{ok, error?}</code></td></tr>
    <tr><td><code>RESIZE_WINDOW</code></td><td><code>width</code>, <code>height</code></td><td><code>{ok:true}</code></td></tr>
    <tr><td><code>OPEN_MUSIC</code> / <code>OPEN_YT_MUSIC</code></td><td></td><td><code>{ok}</code></td></tr>
    <tr><td><code>OPEN_WINAMP_CONTROL</code> / <code>OPEN_WINAMP</code></td><td></td><td><code>{ok}</code></td></tr>
  </table>
  <p>Unknown types answer with <code>data: null</code> and an <code>error</code>. Router events
  stream as server-sent events from <code>/api/v1/events</code>.</p>
</body>
</html>`
