package web

import (
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"tareas-cli/internal/model"
	"tareas-cli/internal/query"
	"tareas-cli/internal/store"
)

// viewParams are the query parameters of the task view: ?view=today&tag=casa&sort=priority.
type viewParams struct {
	View query.View
	Tags []string
	Sort string
}

func parseViewParams(q url.Values) viewParams {
	p := viewParams{View: query.ViewAll}
	if v, ok := query.ParseView(q.Get("view")); ok {
		p.View = v
	}
	for _, t := range q["tag"] {
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				p.Tags = append(p.Tags, part)
			}
		}
	}
	switch s := strings.ToLower(strings.TrimSpace(q.Get("sort"))); s {
	case "priority", "due":
		p.Sort = s
	}
	return p
}

func (p viewParams) options(now time.Time) query.Options {
	return query.Options{
		View:           p.View,
		Tags:           p.Tags,
		SortByPriority: p.Sort == "priority",
		SortByDueDate:  p.Sort == "due",
		Now:            now,
	}
}

// query re-encodes p, dropping defaults.
func (p viewParams) query() string {
	q := url.Values{}
	if p.View != query.ViewAll {
		q.Set("view", string(p.View))
	}
	for _, t := range p.Tags {
		q.Add("tag", t)
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}
	return q.Encode()
}

type badgeVM struct {
	Class string
	Text  string
}

type rowVM struct {
	ID          int
	Text        string
	Completed   bool
	Depth       int
	Indent      int
	HasChildren bool
	Expanded    bool
	Progress    string
	Badges      []badgeVM
	Tags        []string
	Description template.HTML
	Alerts      []string
}

type linkVM struct {
	Label  string
	Href   string
	Active bool
}

type pageVM struct {
	Workspace string
	Scenario  string
	Project   string
	Revision  string
	Query     string
	Views     []linkVM
	Sorts     []linkVM
	TagLinks  []linkVM
	Rows      []rowVM
	Stats     query.Counts
	Flat      bool
}

func badgesVM(bs []query.Badge) []badgeVM {
	out := make([]badgeVM, 0, len(bs))
	for _, b := range bs {
		out = append(out, badgeVM{Class: b.Class, Text: strings.TrimSpace(b.Icon + " " + b.Text)})
	}
	return out
}

func tagTexts(tags []model.Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Text)
	}
	return out
}

// buildPage renders the current project of db under p. It only reads db, so it must run
// inside Dispatcher.Snapshot.
func buildPage(db *store.DB, workspace string, p viewParams, now time.Time) pageVM {
	vm := pageVM{Workspace: workspace, Revision: db.Revision, Query: p.query()}
	sc, proj, ok := db.Current()
	if !ok {
		return vm
	}
	vm.Scenario = strings.TrimSpace(sc.Icon + " " + sc.Name)
	vm.Project = strings.TrimSpace(proj.Icon + " " + proj.Name)
	vm.Stats = query.Stats(proj.Tasks)

	link := func(q viewParams) string {
		if s := q.query(); s != "" {
			return "/?" + s
		}
		return "/"
	}
	for _, v := range query.Views {
		q := p
		q.View = v
		vm.Views = append(vm.Views, linkVM{Label: string(v), Href: link(q), Active: v == p.View})
	}
	for _, s := range []string{"", "priority", "due"} {
		q := p
		q.Sort = s
		label := s
		if label == "" {
			label = "manual"
		}
		vm.Sorts = append(vm.Sorts, linkVM{Label: label, Href: link(q), Active: s == p.Sort})
	}
	for _, t := range query.AllTags(proj.Tasks) {
		q := p
		active := false
		q.Tags = nil
		for _, have := range p.Tags {
			if model.NormalizeTag(have) == model.NormalizeTag(t) {
				active = true
				continue
			}
			q.Tags = append(q.Tags, have)
		}
		if !active {
			q.Tags = append(q.Tags, t)
		}
		vm.TagLinks = append(vm.TagLinks, linkVM{Label: t, Href: link(q), Active: active})
	}

	projection := query.Project(proj.Tasks, p.options(now))
	vm.Flat = !projection.Hierarchical
	for _, r := range projection.Rows() {
		row := rowVM{
			ID:          r.Task.ID,
			Text:        r.Task.Text,
			Completed:   r.Task.Completed,
			Depth:       r.Depth,
			Indent:      r.Depth * 24,
			HasChildren: r.HasChildren,
			Expanded:    r.Task.Expanded,
			Badges:      badgesVM(query.TaskBadges(r.Task, now)),
			Tags:        tagTexts(r.Task.Tags),
			Description: renderMarkdownHTML(r.Task.Description),
		}
		if r.HasChildren {
			row.Progress = fmt.Sprintf("(%d/%d)", r.DoneChildren, r.TotalChildren)
		}
		for _, a := range r.Task.Alerts {
			if a.Active {
				row.Alerts = append(row.Alerts, a.Title+" "+query.AlertCountdown(a.AlertDate, now))
			}
		}
		vm.Rows = append(vm.Rows, row)
	}
	return vm
}
