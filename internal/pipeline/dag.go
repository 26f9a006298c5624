package pipeline

import "photoindex/internal/model"

// Flow is the static stage→downstream[] table (spec §9 design note:
// "the staged graph is best encoded as data rather than code").
// Workers never reference each other directly; the Supervisor alone
// reads Flow to decide fan-out.
var Flow = map[model.Stage][]model.Stage{
	model.StageDiscovery:    {model.StageExif, model.StageThumbnails, model.StagePhash, model.StageMotionPhotos},
	model.StageExif:         {model.StageGeocoding},
	model.StageGeocoding:    {},
	model.StageThumbnails:   {model.StageFaces, model.StageCaptioning, model.StageTagging},
	model.StageMotionPhotos: {},
	model.StagePhash:        {},
	model.StageFaces:        {},
	model.StageCaptioning:   {},
	model.StageTagging:      {},
}

// AllStages lists every per-file stage. The Supervisor starts worker
// pools from its own stage definitions, not from this list. Event
// detection (model.StageEvents) is
// excluded: it is a batch stage run by the river-scheduled trigger in
// internal/event, not a per-file bounded-channel stage.
var AllStages = []model.Stage{
	model.StageExif,
	model.StageGeocoding,
	model.StageThumbnails,
	model.StageMotionPhotos,
	model.StagePhash,
	model.StageFaces,
	model.StageCaptioning,
	model.StageTagging,
}

// Downstream returns the stages that should receive a file identifier
// once stage has committed results for it.
func Downstream(stage model.Stage) []model.Stage {
	return Flow[stage]
}
