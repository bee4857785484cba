package web

import (
	"fmt"
	"net/http"
)

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

// Single page with positions, rewards and live toasts.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>lendscope</title>
  <style>
    :root { --bg:#ffffff; --ink:#111111; --soft:#9c9c9c; --up:#1f9d55; --down:#d7263d; }
    body { margin:0; padding:2rem; font-family:"Space Mono", monospace; background:var(--bg); color:var(--ink); }
    h1 { font-size:1.1rem; letter-spacing:.08em; }
    table { border-collapse:collapse; width:100%; margin-bottom:2rem; }
    th, td { text-align:left; padding:.35rem .6rem; border-bottom:1px solid #eee; font-size:.85rem; }
    .positive { color:var(--up); } .negative { color:var(--down); } .neutral { color:var(--soft); }
    #toasts { position:fixed; right:1rem; bottom:1rem; display:flex; flex-direction:column; gap:.5rem; }
    .toast { padding:.6rem .9rem; border:1px solid var(--ink); background:#fff; }
    .toast.error { border-color:var(--down); } .toast.success { border-color:var(--up); }
  </style>
</head>
<body>
  <h1>POSITIONS</h1>
  <table id="positions"><thead><tr>
    <th>Market</th><th>Average</th><th>Position</th><th>USD</th><th>Profit</th><th>Net APY</th><th>History</th>
  </tr></thead><tbody></tbody></table>
  <h1>REWARDS</h1>
  <div id="rewards"></div>
  <div id="toasts"></div>
  <script>
    const params = window.location.search;
    async function load(path) {
      const res = await fetch(path + params);
      return res.ok ? res.json() : Promise.reject(await res.json());
    }
    function cell(text, cls) {
      const td = document.createElement('td');
      td.textContent = text;
      if (cls) td.className = cls;
      return td;
    }
    load('/api/positions').then(data => {
      const body = document.querySelector('#positions tbody');
      for (const p of data.positions) {
        const tr = document.createElement('tr');
        tr.append(
          cell(p.loanSymbol + ' / ' + p.collateralSymbol),
          cell(p.average),
          cell(p.positionTokens),
          cell(p.positionUsd),
          cell(p.profit + (p.profitPercent ? ' (' + p.profitPercent + ')' : ''), p.profitSign),
          cell(p.netApy),
          cell(p.source),
        );
        body.append(tr);
      }
    }).catch(err => { document.querySelector('#positions tbody').innerHTML = '<tr><td>' + err.error + '</td></tr>'; });
    load('/api/rewards').then(data => {
      document.getElementById('rewards').textContent =
        'claimable now $' + Number(data.claimableNowUsd).toFixed(2) +
        ' / next $' + Number(data.claimableNextUsd).toFixed(2);
    }).catch(() => {});
    const toasts = document.getElementById('toasts');
    const stream = new EventSource('/api/notifications/stream');
    stream.addEventListener('added', ev => {
      const n = JSON.parse(ev.data);
      const div = document.createElement('div');
      div.id = 'toast-' + n.id;
      div.className = 'toast ' + n.type;
      div.textContent = n.message + ' ';
      if (n.link) {
        const a = document.createElement('a');
        a.href = n.link.url; a.target = '_blank'; a.textContent = n.link.text;
        div.append(a);
      }
      toasts.append(div);
    });
    stream.addEventListener('removed', ev => {
      const el = document.getElementById('toast-' + JSON.parse(ev.data).id);
      if (el) el.remove();
    });
  </script>
</body>
</html>
`
