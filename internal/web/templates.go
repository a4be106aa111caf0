package web

import (
	"html/template"
	"strings"
)

const pageTemplate = `{{define "page"}}<!doctype html>
<html lang="es">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{if .Project}}{{.Project}} · {{end}}tareas</title>
<style>{{template "css"}}</style>
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"></script>
</head>
<body data-signals="{revision: '{{.Revision}}'}">
<header>
  <h1>{{.Scenario}} / {{.Project}}</h1>
  <p class="meta">{{if .Workspace}}workspace {{.Workspace}} · {{end}}{{.Stats.Pending}} pendientes · {{.Stats.Completed}} completadas</p>
  <form class="add" onsubmit="return tareas.add(this)">
    <input name="text" placeholder="Nueva tarea" autocomplete="off">
    <button>Agregar</button>
  </form>
</header>
<div data-init="@get('/events{{if .Query}}?{{.Query}}{{end}}')"></div>
{{template "main" .}}
<script>{{template "js"}}</script>
</body>
</html>{{end}}

{{define "main"}}<main id="tareas-main">
<nav>
  {{range .Views}}<a href="{{.Href}}"{{if .Active}} class="active"{{end}}>{{.Label}}</a>{{end}}
  <span class="sep">|</span>
  {{range .Sorts}}<a href="{{.Href}}"{{if .Active}} class="active"{{end}}>{{.Label}}</a>{{end}}
  {{if .TagLinks}}<span class="sep">|</span>{{range .TagLinks}}<a href="{{.Href}}" class="tag{{if .Active}} active{{end}}">#{{.Label}}</a>{{end}}{{end}}
</nav>
{{if not .Rows}}<p class="empty">No hay tareas en esta vista.</p>{{end}}
<ul class="tasks{{if .Flat}} flat{{end}}">
{{range .Rows}}<li class="task{{if .Completed}} done{{end}}" style="margin-left: {{.Indent}}px" data-id="{{.ID}}">
  {{if .HasChildren}}<button class="toggle" data-cmd='{"type":"ToggleExpansion","payload":{"id":{{.ID}}}}'>{{if .Expanded}}▾{{else}}▸{{end}}</button>{{else}}<span class="toggle"></span>{{end}}
  <input type="checkbox"{{if .Completed}} checked{{end}} data-cmd='{"type":"ToggleCompletion","payload":{"id":{{.ID}}}}'>
  <span class="text">{{.Text}}</span>
  {{with .Progress}}<span class="progress">{{.}}</span>{{end}}
  {{range .Badges}}<span class="badge {{.Class}}">{{.Text}}</span>{{end}}
  {{range .Tags}}<span class="tag">#{{.}}</span>{{end}}
  {{range .Alerts}}<span class="alert">🔔 {{.}}</span>{{end}}
  <button class="dup" title="Duplicar" data-cmd='{"type":"DuplicateTask","payload":{"id":{{.ID}}}}'>⧉</button>
  <button class="rm" title="Eliminar" data-confirm="¿Eliminar la tarea y sus subtareas?" data-cmd='{"type":"DeleteTask","payload":{"id":{{.ID}}}}'>✕</button>
  {{with .Description}}<div class="description">{{.}}</div>{{end}}
</li>
{{end}}</ul>
</main>{{end}}`

const pageCSS = `
body { font-family: system-ui, sans-serif; max-width: 60rem; margin: 2rem auto; padding: 0 1rem; color: #222; }
header h1 { font-size: 1.4rem; margin-bottom: .2rem; }
.meta { color: #666; margin-top: 0; }
nav a { margin-right: .5rem; color: #555; text-decoration: none; }
nav a.active { font-weight: bold; color: #000; }
.sep { color: #bbb; margin-right: .5rem; }
ul.tasks { list-style: none; padding: 0; }
li.task { padding: .25rem 0; border-bottom: 1px solid #eee; }
li.task.done .text { text-decoration: line-through; color: #888; }
.toggle { display: inline-block; width: 1.2rem; border: 0; background: none; cursor: pointer; }
.badge, .tag, .alert, .progress { font-size: .8rem; margin-left: .4rem; padding: 0 .3rem; border-radius: .2rem; }
.priority-high { background: #fdd; }
.priority-medium { background: #ffd; }
.priority-low { background: #dfd; }
.due-overdue, .days-remaining-overdue { background: #f99; }
.days-remaining-today, .days-remaining-soon { background: #fc8; }
.due-future, .days-remaining-future { background: #def; }
.tag { color: #36c; }
.description { margin: .2rem 0 .2rem 2.6rem; font-size: .9rem; color: #444; }
button.dup, button.rm { border: 0; background: none; cursor: pointer; color: #999; }
`

const pageJS = `
const tareas = (() => {
  let ws;
  const queue = [];
  function connect() {
    ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
    ws.onopen = () => { while (queue.length) ws.send(queue.shift()); };
    ws.onmessage = (ev) => {
      const msg = JSON.parse(ev.data);
      if (msg.error) console.error(msg.error);
    };
    ws.onclose = () => setTimeout(connect, 1000);
  }
  function send(cmd) {
    const raw = typeof cmd === 'string' ? cmd : JSON.stringify(cmd);
    if (ws && ws.readyState === WebSocket.OPEN) ws.send(raw); else queue.push(raw);
  }
  document.addEventListener('click', (ev) => {
    const el = ev.target.closest('[data-cmd]');
    if (!el) return;
    if (el.dataset.confirm && !confirm(el.dataset.confirm)) { ev.preventDefault(); return; }
    send(el.dataset.cmd);
  });
  connect();
  return {
    send,
    add(form) {
      const text = form.text.value.trim();
      if (text) send({type: 'AddTask', payload: {text}});
      form.reset();
      return false;
    },
  };
})();
`

var pageTemplates = template.Must(template.New("base").Funcs(template.FuncMap{
	"trim": strings.TrimSpace,
}).Parse(pageTemplate + `{{define "css"}}` + pageCSS + `{{end}}{{define "js"}}` + pageJS + `{{end}}`))
