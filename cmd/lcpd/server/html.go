package server

// HTMLPage is the usage page served at the root.
// Its form submits to /lcp and shows the JSON answer.
const HTMLPage = `<!DOCTYPE html>
<html>
<head>
    <title>lcpd - Largest Contentful Paint</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            max-width: 800px;
            margin: 50px auto;
            padding: 20px;
            background: #f5f5f5;
        }
        .container {
            background: white;
            padding: 30px;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
        }
        h1 { color: #333; margin-bottom: 10px; }
        .subtitle { color: #666; margin-bottom: 30px; }
        label { display: block; margin-top: 12px; color: #444; }
        input, select { width: 100%; padding: 8px; box-sizing: border-box; }
        button {
            margin-top: 20px;
            background: #4285f4;
            color: white;
            border: none;
            padding: 12px 24px;
            border-radius: 4px;
            cursor: pointer;
        }
        button:disabled { background: #ccc; cursor: not-allowed; }
        pre { background: #f0f0f0; padding: 15px; border-radius: 4px; white-space: pre-wrap; }
        code { background: #f0f0f0; padding: 2px 4px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>lcpd</h1>
        <p class="subtitle">Measure Largest Contentful Paint under throttling. One test runs at a time.</p>

        <form id="lcp-form">
            <label>URL <input name="url" type="url" required placeholder="https://example.com"></label>
            <label>CPU slowdown multiplier <input name="cpuSlowdownMultiplier" placeholder="1.2"></label>
            <label>Download throughput, bytes/s <input name="downloadThroughput" placeholder="4194304"></label>
            <label>Upload throughput, bytes/s <input name="uploadThroughput" placeholder="1048576"></label>
            <label>Latency, ms <input name="latency" placeholder="40"></label>
            <label>Form factor
                <select name="emulatedFormFactor">
                    <option value="mobile">mobile</option>
                    <option value="desktop">desktop</option>
                </select>
            </label>
            <button id="run" type="submit">Run test</button>
        </form>

        <h3>Result</h3>
        <pre id="result">No test run yet.</pre>

        <p>API: <code>GET /lcp?url=...</code>, <code>GET /stats</code>, <code>GET /metrics</code>, <code>GET /healthz</code></p>
    </div>

    <script>
        const form = document.getElementById('lcp-form');
        const result = document.getElementById('result');
        const run = document.getElementById('run');

        form.addEventListener('submit', async (e) => {
            e.preventDefault();
            const params = new URLSearchParams();
            for (const [k, v] of new FormData(form)) {
                if (v !== '') params.set(k, v);
            }
            run.disabled = true;
            result.textContent = 'Running...';
            try {
                const resp = await fetch('/lcp?' + params.toString());
                const body = await resp.json();
                result.textContent = resp.status + ' ' + JSON.stringify(body, null, 2);
            } catch (err) {
                result.textContent = 'Request failed: ' + err;
            } finally {
                run.disabled = false;
            }
        });
    </script>
</body>
</html>
`
