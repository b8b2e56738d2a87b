/*
Package yolotrain trains YOLO object detectors on datasets hosted by Roboflow
and reports the run to an experiment tracker.

A run is a single pass through a fixed sequence of stages:

	unconfigured -> config_loaded -> device_selected -> dataset_acquired ->
	model_loaded -> training -> evaluated -> done

Any stage may fail, which ends the run. Failures carry one of a closed set of
error kinds declared in pkg/domain (ErrConfigNotFound, ErrConfigFieldMissing,
ErrDatasetAcquisition, ErrModelLoad, ErrTraining, ErrEvaluation).

# Collaborators

The pipeline is hexagonal: training, dataset download, experiment tracking and
device detection sit behind the interfaces of pkg/ports. By default they are
built from the configuration file:

  - Training runs in an external bridge process (pkg/adapters/process) that
    drives the Ultralytics library and reports back over NDJSON.
  - Datasets are exported through the Roboflow REST API (pkg/adapters/roboflow).
  - Runs are tracked on the local filesystem, in Redis or in memory.
  - CUDA availability is detected with nvidia-smi.

Any of them can be replaced through options.

# Usage

	p := yolotrain.New(yolotrain.WithLogger(logger))
	res, err := p.Run(ctx, "configs/config.yaml")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Metrics)

When training completes the pipeline logs a chart of total against trainable
parameters under "trainable_parameters_plot" and uploads the best checkpoint
as the "best_model" artifact. Evaluation metrics are logged under "val/".
*/
package yolotrain
