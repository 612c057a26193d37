// Package provenance captures what is needed to reproduce a run: an
// environment snapshot, installed package manifests, the run configuration
// and copies of the source trees. Everything is written once, at run
// start, under <logdir>/configs and <logdir>/code.
//
// Package listing and VCS queries are best effort. Copying configs and
// source trees is not: a failure there aborts the capture with a
// *errors.CaptureError.
//
//	w := provenance.NewWriter(provenance.WithTextSink(sink))
//	rec, err := w.Capture(ctx, logdir, doc, provenance.CaptureOptions{
//	    ConfigPaths: []string{"configs/train.yaml"},
//	    ExpDir:      "experiments/mnist",
//	})
package provenance
