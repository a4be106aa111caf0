package assistant

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tareas-cli/internal/model"
	"tareas-cli/internal/mutate"
	"tareas-cli/internal/registry"
	"tareas-cli/internal/store"
	"tareas-cli/internal/tree"
)

// Options control how a call addresses the state.
type Options struct {
	// CurrentProjectOnly restricts lookups and creation to the selected project and rejects
	// scenario and project creation.
	CurrentProjectOnly bool
}

// Report is the per-item outcome of a call. Unresolved ids produce a "❌" line and do not
// stop the batch.
type Report struct {
	Messages []string `json:"messages"`
	Changed  bool     `json:"changed"`
}

func (r Report) Text() string {
	return strings.Join(r.Messages, "\n")
}

type executor struct {
	db   *store.DB
	opts Options
	now  time.Time
	rep  Report
}

func (x *executor) say(format string, args ...any) {
	x.rep.Messages = append(x.rep.Messages, fmt.Sprintf(format, args...))
}

// Execute applies call to db. It never fails as a whole: problems are reported per item.
func Execute(db *store.DB, call Call, opts Options, now time.Time) Report {
	x := &executor{db: db, opts: opts, now: now}
	if err := call.Validate(); err != nil {
		x.say("❌ Llamada inválida: %v", err)
		return x.rep
	}
	switch {
	case call.EntityType == EntityStructure || call.Operation == OpCreateStructure:
		x.createStructure(call)
	case call.EntityType == EntityTasks:
		x.tasks(call)
	case call.EntityType == EntityProjects:
		x.projects(call)
	case call.EntityType == EntityScenarios:
		x.scenarios(call)
	}
	return x.rep
}

func (x *executor) onlySuffix() string {
	if x.opts.CurrentProjectOnly {
		return " en el proyecto actual"
	}
	return ""
}

// findTask looks in the selected project in current-project mode and everywhere otherwise.
func (x *executor) findTask(id int) (*model.Task, *tree.Forest, bool) {
	if x.opts.CurrentProjectOnly {
		f := x.db.CurrentForest()
		t, ok := f.Get(id)
		return t, f, ok
	}
	t, loc, ok := x.db.FindTask(id)
	if !ok {
		return nil, nil, false
	}
	return t, loc.Project.Tasks, true
}

// target resolves the container for new root tasks: the item's scenario and project when
// given, else the current selection.
func (x *executor) target(it Item) (*store.Scenario, *store.Project, error) {
	scID, pID := x.db.CurrentScenarioID, x.db.CurrentProjectID
	if !x.opts.CurrentProjectOnly {
		if it.ScenarioID != 0 {
			scID = it.ScenarioID
		}
		if it.ProjectID != 0 {
			pID = it.ProjectID
		}
	}
	sc, ok := x.db.FindScenario(scID)
	if !ok {
		return nil, nil, fmt.Errorf("Escenario %d no encontrado", scID)
	}
	p, ok := sc.FindProject(pID)
	if !ok {
		return nil, nil, fmt.Errorf("Proyecto %d no encontrado en escenario %d", pID, scID)
	}
	return sc, p, nil
}

func (x *executor) tasks(call Call) {
	switch call.Operation {
	case OpAdd:
		for _, it := range call.Items {
			x.addTask(it)
		}
	case OpEdit:
		for _, it := range call.Items {
			if it.ID != 0 {
				x.editTask(it)
			}
		}
	case OpDelete:
		for _, it := range call.Items {
			if it.ID == 0 {
				continue
			}
			t, f, ok := x.findTask(it.ID)
			if !ok {
				x.say("❌ No se encontró la tarea con ID: %d%s", it.ID, x.onlySuffix())
				continue
			}
			text := t.Text
			if _, err := mutate.DeleteTaskIn(f, it.ID); err != nil {
				x.say("❌ No se pudo eliminar la tarea %d: %v", it.ID, err)
				continue
			}
			x.rep.Changed = true
			x.say("✅ Tarea eliminada: %q (ID: %d)", text, it.ID)
		}
	case OpMarkDone, OpMarkPending:
		completed := call.Operation == OpMarkDone
		for _, it := range call.Items {
			if it.ID == 0 {
				continue
			}
			t, f, ok := x.findTask(it.ID)
			if !ok {
				x.say("❌ No se encontró la tarea con ID: %d%s", it.ID, x.onlySuffix())
				continue
			}
			res, err := mutate.SetCompletedIn(f, it.ID, completed)
			if err != nil {
				x.say("❌ No se pudo actualizar la tarea %d: %v", it.ID, err)
				continue
			}
			x.rep.Changed = x.rep.Changed || res.Changed
			if completed {
				x.say("✅ Tarea completada: %q (ID: %d)", t.Text, t.ID)
			} else {
				x.say("✅ Tarea marcada como pendiente: %q (ID: %d)", t.Text, t.ID)
			}
		}
	case OpGet:
		x.say("%s", x.taskSummary())
	default:
		x.say("❌ Operación %q no reconocida para tareas", call.Operation)
	}
}

func itemPatch(it Item) mutate.TaskPatch {
	var p mutate.TaskPatch
	if it.Priority != "" {
		pr := model.Priority(it.Priority)
		p.Priority = &pr
	}
	p.Description = it.Description
	p.DueDate = it.DueDate
	if it.Tags != nil {
		p.Tags = make([]model.Tag, 0, len(it.Tags))
		for _, tag := range it.Tags {
			if k := model.NormalizeTag(tag); k != "" && !model.HasTag(p.Tags, k) {
				p.Tags = append(p.Tags, model.PlainTag(k))
			}
		}
	}
	if it.Repeat != "" {
		r := model.RepeatKind(it.Repeat)
		p.Repeat = &r
	}
	p.RepeatCount = it.RepeatCount
	return p
}

func checkItem(it Item) error {
	if strings.TrimSpace(it.Title) == "" {
		return errors.New("falta el título")
	}
	if it.DueDate != nil && !model.ValidDue(*it.DueDate) {
		return fmt.Errorf("fecha inválida %q", *it.DueDate)
	}
	for _, sub := range it.Subtasks {
		if err := checkItem(sub); err != nil {
			return err
		}
	}
	return nil
}

// addTree adds it under parentID (root when nil) and then its subtasks, depth first.
func (x *executor) addTree(f *tree.Forest, parentID *int, it Item) (*model.Task, error) {
	res, err := mutate.AddTaskIn(x.db, f, parentID, it.Title)
	if err != nil {
		return nil, err
	}
	t := res.Task
	if _, err := mutate.EditTaskIn(x.db, f, t.ID, itemPatch(it)); err != nil {
		return nil, err
	}
	if it.Completed != nil {
		if _, err := mutate.SetCompletedIn(f, t.ID, *it.Completed); err != nil {
			return nil, err
		}
	}
	id := t.ID
	for _, sub := range it.Subtasks {
		if _, err := x.addTree(f, &id, sub); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func propsInfo(it Item) string {
	var props []string
	if it.Priority != "" {
		props = append(props, "prioridad: "+it.Priority)
	}
	if it.DueDate != nil && *it.DueDate != "" {
		props = append(props, "fecha: "+*it.DueDate)
	}
	if len(it.Tags) > 0 {
		props = append(props, "etiquetas: "+strings.Join(it.Tags, ", "))
	}
	if len(props) == 0 {
		return ""
	}
	return " (" + strings.Join(props, ", ") + ")"
}

func (x *executor) addTask(it Item) {
	if err := checkItem(it); err != nil {
		x.say("❌ No se pudo agregar la tarea: %v", err)
		return
	}
	var (
		f       *tree.Forest
		sc      *store.Scenario
		p       *store.Project
		context string
	)
	if it.ParentID != nil {
		_, pf, ok := x.findTask(*it.ParentID)
		if !ok {
			x.say("❌ Tarea padre con ID %d no encontrada%s", *it.ParentID, x.onlySuffix())
			return
		}
		f = pf
	} else {
		var err error
		sc, p, err = x.target(it)
		if err != nil {
			x.say("❌ %v", err)
			return
		}
		f = p.Tasks
		if !x.opts.CurrentProjectOnly {
			context = fmt.Sprintf(" (Escenario: %s, Proyecto: %s)", sc.Name, p.Name)
		}
	}
	t, err := x.addTree(f, it.ParentID, it)
	if err != nil {
		x.say("❌ No se pudo agregar la tarea %q: %v", it.Title, err)
		return
	}
	x.rep.Changed = true

	kind, parentInfo := "Tarea", ""
	if it.ParentID != nil {
		kind = "Subtarea"
		parentInfo = fmt.Sprintf(" (subtarea de ID: %d)", *it.ParentID)
	}
	subtasks := ""
	if n := len(t.Children); n > 0 {
		subtasks = fmt.Sprintf(" con %d subtareas", n)
	}
	x.say("✅ %s agregada: %q (ID: %d)%s%s%s%s", kind, t.Text, t.ID, parentInfo, context, subtasks, propsInfo(it))
}

func (x *executor) editTask(it Item) {
	t, f, ok := x.findTask(it.ID)
	if !ok {
		x.say("❌ No se encontró la tarea con ID: %d%s", it.ID, x.onlySuffix())
		return
	}
	if it.ParentID != nil {
		if err := mutate.CheckSubtaskMove(f, t.ID, *it.ParentID); err != nil {
			x.say("❌ No se pudo mover la tarea %d: %v", it.ID, err)
			return
		}
	}
	patch := itemPatch(it)
	if title := strings.TrimSpace(it.Title); title != "" {
		patch.Text = &title
	}
	if _, err := mutate.EditTaskIn(x.db, f, t.ID, patch); err != nil {
		x.say("❌ No se pudo editar la tarea %d: %v", it.ID, err)
		return
	}
	x.rep.Changed = true
	if it.Completed != nil {
		if _, err := mutate.SetCompletedIn(f, t.ID, *it.Completed); err != nil {
			x.say("❌ No se pudo editar la tarea %d: %v", it.ID, err)
			return
		}
	}
	var changes []string
	if it.Title != "" {
		changes = append(changes, fmt.Sprintf("título: %q", it.Title))
	}
	if it.Priority != "" {
		changes = append(changes, "prioridad: "+it.Priority)
	}
	if it.DueDate != nil {
		d := *it.DueDate
		if d == "" {
			d = "sin fecha"
		}
		changes = append(changes, "fecha: "+d)
	}
	if len(it.Tags) > 0 {
		changes = append(changes, "etiquetas: "+strings.Join(it.Tags, ", "))
	}
	if it.ParentID != nil {
		if _, err := mutate.ConvertToSubtaskIn(f, t.ID, *it.ParentID); err != nil {
			x.say("❌ No se pudo mover la tarea %d: %v", it.ID, err)
			return
		}
		changes = append(changes, fmt.Sprintf("subtarea de ID: %d", *it.ParentID))
	}
	info := ""
	if len(changes) > 0 {
		info = " - Cambios: " + strings.Join(changes, ", ")
	}
	x.say("✅ Tarea editada: %q (ID: %d)%s", t.Text, t.ID, info)
}

func writeTasks(b *strings.Builder, f *tree.Forest) {
	for _, t := range f.Flatten() {
		mark := "⏳"
		if t.Completed {
			mark = "✅"
		}
		indent := strings.Repeat("  ", t.Depth)
		bullet := "•"
		if t.Depth > 0 {
			bullet = "↳"
		}
		fmt.Fprintf(b, "    %s%s ID: %d - %s %s\n", indent, bullet, t.ID, t.Text, mark)
	}
}

func (x *executor) taskSummary() string {
	var b strings.Builder
	if x.opts.CurrentProjectOnly {
		sc, p, ok := x.db.Current()
		if !ok {
			return "❌ No hay un proyecto seleccionado"
		}
		b.WriteString("📊 TAREAS DEL PROYECTO ACTUAL:\n")
		fmt.Fprintf(&b, "📁 ESCENARIO ACTUAL: %s\n", sc.Name)
		fmt.Fprintf(&b, "  📋 PROYECTO ACTUAL: %s: %d tareas\n", p.Name, p.Tasks.Len())
		writeTasks(&b, p.Tasks)
		return strings.TrimRight(b.String(), "\n")
	}
	b.WriteString("📊 RESUMEN COMPLETO DE TAREAS:\n")
	for _, sc := range x.db.Scenarios {
		fmt.Fprintf(&b, "📁 ESCENARIO: %s\n", sc.Name)
		for _, p := range sc.Projects {
			fmt.Fprintf(&b, "  📋 %s: %d tareas\n", p.Name, p.Tasks.Len())
			writeTasks(&b, p.Tasks)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (x *executor) projects(call Call) {
	if x.opts.CurrentProjectOnly && call.Operation != OpGet {
		x.say("❌ En modo \"Solo Proyecto Actual\" no se pueden crear nuevos proyectos. Cambia al modo completo para esta operación.")
		return
	}
	switch call.Operation {
	case OpAdd:
		for _, it := range call.Items {
			res, err := registry.CreateProject(x.db, it.ScenarioID, registryInput(it))
			if err != nil {
				x.say("❌ %s", registryErr(err, it.ScenarioID, x.db.CurrentScenarioID))
				continue
			}
			x.rep.Changed = true
			x.say("✅ Proyecto agregado: %q (ID: %d) en escenario %q", res.Project.Name, res.Project.ID, res.Scenario.Name)
		}
	case OpGet:
		var b strings.Builder
		b.WriteString("📂 TODOS LOS PROYECTOS:\n")
		for _, sc := range x.db.Scenarios {
			fmt.Fprintf(&b, "📁 ESCENARIO: %s\n", sc.Name)
			for _, p := range sc.Projects {
				fmt.Fprintf(&b, "  📋 ID: %d - %s\n", p.ID, p.Name)
			}
		}
		x.say("%s", strings.TrimRight(b.String(), "\n"))
	default:
		x.say("❌ Operación %q no soportada para proyectos", call.Operation)
	}
}

func (x *executor) scenarios(call Call) {
	if x.opts.CurrentProjectOnly && call.Operation != OpGet {
		x.say("❌ En modo \"Solo Proyecto Actual\" no se pueden crear nuevos escenarios. Cambia al modo completo para esta operación.")
		return
	}
	switch call.Operation {
	case OpAdd:
		for _, it := range call.Items {
			res, err := registry.CreateScenario(x.db, registryInput(it))
			if err != nil {
				x.say("❌ %v", err)
				continue
			}
			x.rep.Changed = true
			x.say("✅ Escenario agregado: %q (ID: %d)", res.Scenario.Name, res.Scenario.ID)
		}
	case OpGet:
		var b strings.Builder
		b.WriteString("📂 TODOS LOS ESCENARIOS:\n")
		for _, sc := range x.db.Scenarios {
			fmt.Fprintf(&b, "📁 ID: %d - %s\n", sc.ID, sc.Name)
		}
		x.say("%s", strings.TrimRight(b.String(), "\n"))
	default:
		x.say("❌ Operación %q no soportada para escenarios", call.Operation)
	}
}

func registryInput(it Item) registry.Input {
	in := registry.Input{Name: it.Title, Icon: it.Icon}
	if it.Description != nil {
		in.Description = *it.Description
	}
	return in
}

func registryErr(err error, scenarioID, current int) string {
	var nf mutate.NotFoundError
	if errors.As(err, &nf) && nf.Kind == "scenario" {
		if scenarioID == 0 {
			scenarioID = current
		}
		return fmt.Sprintf("Escenario %d no encontrado", scenarioID)
	}
	return err.Error()
}

// createStructure builds scenarios, projects and tasks in one pass. Projects go into the
// scenario created last (or the current one) and tasks into the project created last (or the
// current one). In current-project mode only tasks are created, in the selected project.
func (x *executor) createStructure(call Call) {
	if len(call.Items) == 0 {
		x.say("❌ No se proporcionaron datos para crear la estructura%s.", topicSuffix(call.Topic))
		return
	}
	var (
		scenario *store.Scenario
		project  *store.Project
	)
	if _, p, ok := x.db.Current(); ok {
		project = p
	}
	if sc, ok := x.db.FindScenario(x.db.CurrentScenarioID); ok {
		scenario = sc
	}
	for _, it := range call.Items {
		switch it.Kind {
		case "escenario":
			if x.opts.CurrentProjectOnly {
				continue
			}
			res, err := registry.CreateScenario(x.db, registryInput(it))
			if err != nil {
				x.say("❌ %v", err)
				continue
			}
			x.rep.Changed = true
			scenario = res.Scenario
			project, _ = scenario.FindProject(model.DefaultProjectID)
			x.say("📁 Escenario creado: %q (ID: %d)", res.Scenario.Name, res.Scenario.ID)
		case "proyecto":
			if x.opts.CurrentProjectOnly || scenario == nil {
				continue
			}
			res, err := registry.CreateProject(x.db, scenario.ID, registryInput(it))
			if err != nil {
				x.say("❌ %v", err)
				continue
			}
			x.rep.Changed = true
			project = res.Project
			x.say("📋 Proyecto creado: %q (ID: %d)", res.Project.Name, res.Project.ID)
		case "tarea", "":
			if project == nil {
				x.say("❌ No hay un proyecto donde crear %q", it.Title)
				continue
			}
			if err := checkItem(it); err != nil {
				x.say("❌ No se pudo crear la tarea: %v", err)
				continue
			}
			t, err := x.addTree(project.Tasks, nil, it)
			if err != nil {
				x.say("❌ No se pudo crear la tarea %q: %v", it.Title, err)
				continue
			}
			x.rep.Changed = true
			x.say("📝 Tarea creada: %q (ID: %d) con %d subtareas", t.Text, t.ID, len(t.Children))
		}
	}
}

func topicSuffix(topic string) string {
	if topic = strings.TrimSpace(topic); topic == "" {
		return ""
	}
	return fmt.Sprintf(" para %q", topic)
}
