package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Built-in workflow names.
const (
	DataPipelineName = "data-pipeline"
	CICDName         = "ci-cd"
	MLTrainingName   = "ml-training"
)

// step returns a task function that waits units×delay and returns out
// computed from the shared results.
func step(delay time.Duration, units int, out func(Results) (any, error)) TaskFunc {
	return func(ctx context.Context, results Results) (any, error) {
		if err := pause(ctx, time.Duration(units)*delay); err != nil {
			return nil, err
		}
		return out(results)
	}
}

func fixed(v map[string]any) func(Results) (any, error) {
	return func(Results) (any, error) { return v, nil }
}

func field(results Results, task, key string) (any, error) {
	m, ok := results[task].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing output of %s", task)
	}
	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("output of %s has no %q", task, key)
	}
	return v, nil
}

// DataPipeline is a linear extract, validate, transform, load and report
// chain. delay is the unit of simulated work.
func DataPipeline(delay time.Duration) *Workflow {
	w := New(DataPipelineName)
	w.MustAddTask(Task{ID: "extract", Name: "Extract Data", Run: step(delay, 2, fixed(map[string]any{"records": 1000, "source": "database"}))})
	w.MustAddTask(Task{ID: "validate", Name: "Validate Data", Dependencies: []string{"extract"}, Run: step(delay, 1, func(r Results) (any, error) {
		n, err := field(r, "extract", "records")
		if err != nil {
			return nil, err
		}
		return map[string]any{"valid": true, "records": n}, nil
	})})
	w.MustAddTask(Task{ID: "transform", Name: "Transform Data", Dependencies: []string{"validate"}, Run: step(delay, 2, func(r Results) (any, error) {
		n, err := field(r, "validate", "records")
		if err != nil {
			return nil, err
		}
		return map[string]any{"transformed": n, "format": "parquet"}, nil
	})})
	w.MustAddTask(Task{ID: "load", Name: "Load Data", Dependencies: []string{"transform"}, Run: step(delay, 2, func(r Results) (any, error) {
		n, err := field(r, "transform", "transformed")
		if err != nil {
			return nil, err
		}
		return map[string]any{"loaded": n, "destination": "data_warehouse"}, nil
	})})
	w.MustAddTask(Task{ID: "report", Name: "Generate Report", Dependencies: []string{"load"}, Run: step(delay, 1, func(r Results) (any, error) {
		n, err := field(r, "load", "loaded")
		if err != nil {
			return nil, err
		}
		return map[string]any{"report": fmt.Sprintf("processed %v records successfully", n)}, nil
	})})
	return w
}

// CICD fans out lint and both test suites after install and joins them
// at build. It runs three tasks at a time by default.
func CICD(delay time.Duration) *Workflow {
	w := New(CICDName, WithParallelism(3))
	w.MustAddTask(Task{ID: "checkout", Name: "Checkout Code", Run: step(delay, 1, fixed(map[string]any{"repo": "my-app", "branch": "main"}))})
	w.MustAddTask(Task{ID: "install", Name: "Install Dependencies", Dependencies: []string{"checkout"}, Run: step(delay, 2, fixed(map[string]any{"packages": 50, "installed": true}))})
	w.MustAddTask(Task{ID: "lint", Name: "Run Linter", Dependencies: []string{"install"}, Run: step(delay, 1, fixed(map[string]any{"errors": 0, "warnings": 3}))})
	w.MustAddTask(Task{ID: "unit_tests", Name: "Run Unit Tests", Dependencies: []string{"install"}, Run: step(delay, 2, fixed(map[string]any{"tests": 150, "passed": 150, "failed": 0}))})
	w.MustAddTask(Task{ID: "integration_tests", Name: "Run Integration Tests", Dependencies: []string{"install"}, Run: step(delay, 3, fixed(map[string]any{"tests": 30, "passed": 30, "failed": 0}))})
	w.MustAddTask(Task{ID: "build", Name: "Build Docker Image", Dependencies: []string{"lint", "unit_tests", "integration_tests"}, Run: step(delay, 2, fixed(map[string]any{"image": "my-app:latest", "size": "250MB"}))})
	w.MustAddTask(Task{ID: "deploy_stg", Name: "Deploy to Staging", Dependencies: []string{"build"}, Run: step(delay, 2, fixed(map[string]any{"environment": "staging", "url": "https://staging.myapp.com"}))})
	w.MustAddTask(Task{ID: "deploy_prod", Name: "Deploy to Production", Dependencies: []string{"deploy_stg"}, Run: step(delay, 2, fixed(map[string]any{"environment": "production", "url": "https://myapp.com"}))})
	return w
}

var errTrainingDiverged = errors.New("training diverged")

// MLTraining is a linear training pipeline. The train task fails on its
// first attempt and has two retries.
func MLTraining(delay time.Duration) *Workflow {
	w := New(MLTrainingName)
	w.MustAddTask(Task{ID: "load", Name: "Load Dataset", Run: step(delay, 1, fixed(map[string]any{"samples": 10000, "features": 20}))})
	w.MustAddTask(Task{ID: "preprocess", Name: "Preprocess Data", Dependencies: []string{"load"}, Run: step(delay, 2, fixed(map[string]any{"cleaned": 9500, "outliers_removed": 500}))})
	w.MustAddTask(Task{ID: "features", Name: "Feature Engineering", Dependencies: []string{"preprocess"}, Run: step(delay, 2, fixed(map[string]any{"features": 35, "engineered": 15}))})
	w.MustAddTask(Task{ID: "split", Name: "Split Dataset", Dependencies: []string{"features"}, Run: step(delay, 1, fixed(map[string]any{"train": 7600, "val": 950, "test": 950}))})
	w.MustAddTask(Task{ID: "train", Name: "Train Model", Dependencies: []string{"split"}, Retries: 2, Run: func(ctx context.Context, r Results) (any, error) {
		if err := pause(ctx, 4*delay); err != nil {
			return nil, err
		}
		if Attempt(ctx) == 1 {
			return nil, errTrainingDiverged
		}
		return map[string]any{"accuracy": 0.92, "loss": 0.15}, nil
	}})
	w.MustAddTask(Task{ID: "evaluate", Name: "Evaluate Model", Dependencies: []string{"train"}, Run: step(delay, 2, fixed(map[string]any{"test_accuracy": 0.91, "f1_score": 0.89}))})
	w.MustAddTask(Task{ID: "save", Name: "Save Model", Dependencies: []string{"evaluate"}, Run: step(delay, 1, fixed(map[string]any{"model_path": "/models/model_v1.bin", "size": "15MB"}))})
	return w
}

// RegisterBuiltins registers the demo workflows. Names already registered
// are left alone.
func RegisterBuiltins(delay time.Duration) {
	builtins := []struct {
		wf   *Workflow
		desc string
	}{
		{DataPipeline(delay), "Extract, validate, transform and load records, then report"},
		{CICD(delay), "Checkout and install, run lint and test suites in parallel, build and deploy"},
		{MLTraining(delay), "Prepare a dataset and train a model that needs one retry"},
	}
	for _, b := range builtins {
		if _, ok := Get(b.wf.Name()); ok {
			continue
		}
		_ = Register(b.wf.Name(), b.wf, FromSource(SourceBuiltin), Described(b.desc))
	}
}
