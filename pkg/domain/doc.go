/*
Package domain contains the core types of a yolotrain session.

It defines the stage machine that a training session walks through, the
closed set of error kinds a session can fail with, and the values exchanged
with the external collaborators (dataset reference, device, parameter set,
metrics, tracker artifacts). This package is kept free of I/O so every other
package can depend on it.

# Key Entities

  - Stage: one step of the linear session lifecycle (ConfigLoaded ... Done, Failed).
  - Device: the compute device selected for training.
  - TrainEndEvent: what the trainer reports when training completes.
  - ParamCount: total vs trainable parameter count over a parameter set.
  - Artifact / Image: values submitted to an experiment tracker.
*/
package domain
