package webmonitor

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Moodcam Monitor</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { margin: 0; font-family: system-ui, sans-serif; background: #111; color: #eee; }
        .app { max-width: 1100px; margin: 0 auto; padding: 16px; }
        .header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 12px; }
        .title { font-size: 20px; font-weight: 600; }
        .badge { padding: 4px 10px; border-radius: 10px; font-size: 13px; background: #444; }
        .badge.running { background: #1b7f3a; }
        .badge.stopped { background: #8a5a00; }
        .grid { display: grid; grid-template-columns: 2fr 1fr; gap: 16px; }
        .panel { background: #1c1c1c; border-radius: 8px; padding: 12px; }
        .controls { display: flex; gap: 8px; margin-top: 10px; }
        button { padding: 6px 14px; border: 0; border-radius: 6px; background: #333; color: #eee; cursor: pointer; }
        button:hover { background: #444; }
        #stream { width: 100%; height: auto; display: block; background: #000; }
        .face { border-bottom: 1px solid #333; padding: 6px 0; }
        .label { font-weight: 600; }
        .reliable { color: #0f0; }
        .uncertain { color: #ff0; }
        .scores { font-size: 12px; color: #aaa; }
        #message { font-size: 12px; color: #aaa; margin-top: 8px; min-height: 1em; }
    </style>
</head>
<body>
    <div class="app">
        <div class="header">
            <div class="title">Moodcam Monitor</div>
            <span class="badge" id="status-badge">idle</span>
        </div>

        <div class="grid">
            <div class="panel">
                <img id="stream" src="/stream" alt="Annotated camera preview">
                <div class="controls">
                    <button type="button" id="btn-start">Start</button>
                    <button type="button" id="btn-stop">Stop</button>
                    <button type="button" id="btn-snapshot">Snapshot</button>
                </div>
                <div id="message"></div>
            </div>
            <div class="panel">
                <h3>Faces</h3>
                <div id="faces">No faces yet.</div>
                <h3>Pipeline</h3>
                <div id="stats"></div>
            </div>
        </div>
    </div>

    <script>
        const threshold = 0.4;
        const badge = document.getElementById('status-badge');
        const message = document.getElementById('message');

        async function post(path) {
            try {
                const res = await fetch(path, { method: 'POST' });
                const body = await res.json();
                message.textContent = res.ok ? JSON.stringify(body) : (body.error || res.statusText);
            } catch (err) {
                message.textContent = err.toString();
            }
        }

        document.getElementById('btn-start').onclick = () => post('/api/start');
        document.getElementById('btn-stop').onclick = () => post('/api/stop');
        document.getElementById('btn-snapshot').onclick = () => post('/api/snapshot');

        function renderFaces(event) {
            const el = document.getElementById('faces');
            if (!event.detections || event.detections.length === 0) {
                el.textContent = 'No faces.';
                return;
            }
            el.innerHTML = '';
            for (const d of event.detections) {
                const div = document.createElement('div');
                div.className = 'face';
                const cls = d.confidence > threshold ? 'reliable' : 'uncertain';
                const scores = Object.entries(d.scores || {})
                    .sort((a, b) => b[1] - a[1])
                    .map(([k, v]) => k + ' ' + Math.round(v * 100) + '%')
                    .join(' | ');
                div.innerHTML = '<span class="label ' + cls + '">' + d.label + ': ' +
                    (d.confidence * 100).toFixed(1) + '%</span>' +
                    '<div class="scores">' + scores + '</div>';
                el.appendChild(div);
            }
        }

        function renderStatus(status) {
            const p = status.pipeline || {};
            badge.textContent = p.state || 'idle';
            badge.className = 'badge ' + (p.state || '');
            document.getElementById('stats').textContent =
                'FPS ' + (p.fps || 0).toFixed(1) + ' | frames ' + (p.frames || 0) +
                (p.last_snapshot ? ' | last snapshot ' + p.last_snapshot : '') +
                (p.last_error ? ' | ' + p.last_error : '');
        }

        new EventSource('/api/detections/stream').onmessage = (e) => renderFaces(JSON.parse(e.data));
        new EventSource('/api/status/stream').onmessage = (e) => renderStatus(JSON.parse(e.data));
    </script>
</body>
</html>
`
