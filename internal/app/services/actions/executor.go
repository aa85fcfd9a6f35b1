package actions

import (
	"context"
	"fmt"

	"github.com/flowlayer/enginecore/internal/app/condition"
	"github.com/flowlayer/enginecore/internal/app/idgen"
	workflow "github.com/flowlayer/enginecore/internal/app/domain/workflow"
	"github.com/flowlayer/enginecore/internal/app/pathutil"
	"github.com/flowlayer/enginecore/internal/app/record"
	"github.com/flowlayer/enginecore/internal/app/storage"
)

// Result is the outcome of one action dispatch (§4.G).
type Result struct {
	Success bool
	Data    any
	Error   string
}

// Dependencies bundles the collaborators the Action Executor delegates
// side effects to. Storage is required for the entity-CRUD variants; the
// other three may be nil when a workflow never exercises the
// corresponding action kind.
type Dependencies struct {
	Storage  *storage.Storage
	Messages MessageHandler
	HTTP     HTTPClient
	Log      Logger
}

// Execute dispatches action by its Kind against ctxRecord (the execution's
// current context), returning the result and the (possibly mutated)
// context. Any failure — including a panic recovered from a misbehaving
// collaborator — surfaces as Result{Success: false, Error}, never as a Go
// error, matching §4.G's "any thrown exception is caught" contract.
func Execute(ctx context.Context, deps Dependencies, action workflow.Action, ctxRecord record.Record) (result Result, next record.Record) {
	next = ctxRecord
	defer func() {
		if r := recover(); r != nil {
			result = Result{Success: false, Error: fmt.Sprintf("action panic: %v", r)}
		}
	}()

	switch action.Kind {
	case workflow.ActionSendMessage:
		return executeSendMessage(ctx, deps, action, ctxRecord), ctxRecord
	case workflow.ActionCreateEntity:
		return executeCreateEntity(ctx, deps, action, ctxRecord)
	case workflow.ActionUpdateEntity:
		return executeUpdateEntity(ctx, deps, action, ctxRecord)
	case workflow.ActionDeleteEntity:
		return executeDeleteEntity(ctx, deps, action, ctxRecord), ctxRecord
	case workflow.ActionSetContext:
		return executeSetContext(action, ctxRecord)
	case workflow.ActionHTTPCall:
		return executeHTTPCall(ctx, deps, action, ctxRecord)
	case workflow.ActionLog:
		return executeLog(ctx, deps, action, ctxRecord), ctxRecord
	default:
		return Result{Success: false, Error: fmt.Sprintf("unknown action kind %q", action.Kind)}, ctxRecord
	}
}

func executeSendMessage(ctx context.Context, deps Dependencies, action workflow.Action, ctxRecord record.Record) Result {
	if deps.Messages == nil {
		return Result{Success: false, Error: "no message handler configured"}
	}
	channel := coerceString(action.Channel.Resolve(ctxRecord))
	recipient := coerceString(action.Recipient.Resolve(ctxRecord))
	message := coerceString(action.Message.Resolve(ctxRecord))
	template := ""
	if action.HasTemplateName {
		template = coerceString(action.TemplateName.Resolve(ctxRecord))
	}
	if err := deps.Messages.Send(ctx, channel, recipient, message, template); err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	return Result{Success: true}
}

func resolveFields(fields map[string]condition.Source, ctxRecord record.Record) record.Record {
	out := make(record.Record, len(fields))
	for k, src := range fields {
		out[k] = src.Resolve(ctxRecord)
	}
	return out
}

func executeCreateEntity(ctx context.Context, deps Dependencies, action workflow.Action, ctxRecord record.Record) (Result, record.Record) {
	if deps.Storage == nil {
		return Result{Success: false, Error: "no storage configured"}, ctxRecord
	}
	if !deps.Storage.HasCollection(action.Collection) {
		return Result{Success: false, Error: fmt.Sprintf("collection %q is not registered", action.Collection)}, ctxRecord
	}
	rec := resolveFields(action.Fields, ctxRecord)
	if rec.ID() == "" {
		rec = rec.WithID(idgen.New())
	}
	created, err := deps.Storage.CreateRecord(ctx, action.Collection, rec)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, ctxRecord
	}
	next := ctxRecord
	if action.HasSaveResultTo {
		if updated, err := pathutil.Set(ctxRecord, action.SaveResultTo, map[string]any(created)); err == nil {
			next = updated
		}
	}
	return Result{Success: true, Data: created}, next
}

func executeUpdateEntity(ctx context.Context, deps Dependencies, action workflow.Action, ctxRecord record.Record) (Result, record.Record) {
	if deps.Storage == nil {
		return Result{Success: false, Error: "no storage configured"}, ctxRecord
	}
	if !deps.Storage.HasCollection(action.Collection) {
		return Result{Success: false, Error: fmt.Sprintf("collection %q is not registered", action.Collection)}, ctxRecord
	}
	if !action.HasRecordID {
		return Result{Success: false, Error: "updateEntity requires a recordId"}, ctxRecord
	}
	id := coerceString(action.RecordID.Resolve(ctxRecord))
	existing, found, err := deps.Storage.FindRecord(ctx, action.Collection, id)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, ctxRecord
	}
	if !found {
		return Result{Success: false, Error: fmt.Sprintf("record %q not found in %q", id, action.Collection)}, ctxRecord
	}
	merged := existing.Merge(resolveFields(action.Fields, ctxRecord))
	updated, found, err := deps.Storage.UpdateRecord(ctx, action.Collection, id, merged)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, ctxRecord
	}
	if !found {
		return Result{Success: false, Error: fmt.Sprintf("record %q not found in %q", id, action.Collection)}, ctxRecord
	}
	next := ctxRecord
	if action.HasSaveResultTo {
		if out, err := pathutil.Set(ctxRecord, action.SaveResultTo, map[string]any(updated)); err == nil {
			next = out
		}
	}
	return Result{Success: true, Data: updated}, next
}

func executeDeleteEntity(ctx context.Context, deps Dependencies, action workflow.Action, ctxRecord record.Record) Result {
	if deps.Storage == nil {
		return Result{Success: false, Error: "no storage configured"}
	}
	if !deps.Storage.HasCollection(action.Collection) {
		return Result{Success: false, Error: fmt.Sprintf("collection %q is not registered", action.Collection)}
	}
	if !action.HasRecordID {
		return Result{Success: false, Error: "deleteEntity requires a recordId"}
	}
	id := coerceString(action.RecordID.Resolve(ctxRecord))
	deleted, err := deps.Storage.DeleteRecord(ctx, action.Collection, id)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	if !deleted {
		return Result{Success: false, Error: fmt.Sprintf("record %q not found in %q", id, action.Collection)}
	}
	return Result{Success: true}
}

// executeSetContext writes each resolved value into ctxRecord at its dotted
// path, creating intermediate objects/arrays as needed (bracketed numeric
// keys create arrays), per §4.G.
func executeSetContext(action workflow.Action, ctxRecord record.Record) (Result, record.Record) {
	next := ctxRecord
	for _, entry := range action.Entries {
		value := entry.Value.Resolve(next)
		updated, err := pathutil.Set(next, entry.Path, value)
		if err != nil {
			return Result{Success: false, Error: err.Error()}, next
		}
		next = updated
	}
	return Result{Success: true}, next
}

func executeHTTPCall(ctx context.Context, deps Dependencies, action workflow.Action, ctxRecord record.Record) (Result, record.Record) {
	if deps.HTTP == nil {
		return Result{Success: false, Error: "no http client configured"}, ctxRecord
	}
	method := coerceString(action.Method.Resolve(ctxRecord))
	url := coerceString(action.URL.Resolve(ctxRecord))
	var headers map[string]any
	if action.HasHeaders {
		headers = map[string]any(resolveFields(action.Headers, ctxRecord))
	}
	var body any
	if action.HasBody {
		body = action.Body.Resolve(ctxRecord)
	}
	resp, err := deps.HTTP.Request(ctx, method, url, headers, body)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, ctxRecord
	}
	next := ctxRecord
	if action.HasSaveResultTo {
		respRecord := map[string]any{
			"statusCode": resp.StatusCode,
			"headers":    resp.Headers,
			"body":       resp.Body,
		}
		if updated, err := pathutil.Set(ctxRecord, action.SaveResultTo, respRecord); err == nil {
			next = updated
		}
	}
	return Result{Success: true, Data: resp}, next
}

func executeLog(ctx context.Context, deps Dependencies, action workflow.Action, ctxRecord record.Record) Result {
	level := action.Level
	if level == "" {
		level = workflow.LogInfo
	}
	message := coerceString(action.Message.Resolve(ctxRecord))
	var data map[string]any
	if action.HasData {
		if m, ok := action.Data.Resolve(ctxRecord).(map[string]any); ok {
			data = m
		}
	}
	if deps.Log != nil {
		deps.Log.Log(ctx, string(level), message, data)
	}
	return Result{Success: true}
}

func coerceString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
