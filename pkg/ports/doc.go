/*
Package ports defines the driven ports (interfaces) of a training session.

Each external collaborator the orchestrator delegates to is reached through
one of these interfaces, so the orchestrator can be exercised with in-memory
fakes and adapters can be swapped through configuration.

# Key Interfaces

  - DatasetService: materializes a hosted dataset version on local storage.
  - Trainer / Model: constructs a detection model, trains it, evaluates it.
  - Tracker / Run: records logged values and artifacts of one run.
  - DeviceProbe: reports whether an accelerator is available.
*/
package ports
