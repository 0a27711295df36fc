package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/app"
	"github.com/spigell/hirewire/internal/capture"
	"github.com/spigell/hirewire/internal/logger"
	"github.com/spigell/hirewire/internal/router"
)

var pitchCmd = &cobra.Command{
	Use:   "pitch <file>",
	Short: "Upload a recorded video pitch and optionally apply with it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pitch(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(pitchCmd)

	pitchCmd.Flags().String("listing", "", "apply to this listing with the uploaded pitch")
}

func pitch(cmd *cobra.Command, path string) {
	ctx := context.Background()

	rt := bootstrap(ctx)
	defer rt.Close()

	if err := rt.signInFromConfig(ctx); err != nil {
		rt.logger.Fatal("signing in", zap.Error(err), zap.String("hint", "set backend.email and backend.password-file"))
	}
	if d := rt.app.Navigate(router.ViewPitch, router.IntentPitch); !d.Allowed {
		rt.logger.Fatal("recording a pitch is not allowed", zap.String("view", string(d.View)))
	}

	out := cmd.OutOrStdout()

	machine := capture.NewMachine(rt.logger, capture.FileDevice{Path: path, ChunkSize: rt.config.Uploads.ChunkSize}, rt.uploader())
	defer machine.Close()

	machine.OnProgress = func(p float64) {
		fmt.Fprintf(out, "\ruploading: %3.0f%%", p)
	}

	if err := machine.Mount(ctx); err != nil {
		rt.logger.Fatal("opening the recording", zap.Error(err))
	}

	for _, action := range []capture.Action{capture.ActionStart, capture.ActionStop, capture.ActionConfirm} {
		changed, err := machine.Dispatch(ctx, action)
		if err != nil {
			rt.logger.Fatal("capture failed", zap.String("action", string(action)), zap.Error(err))
		}
		if !changed {
			rt.logger.Fatal("capture did not advance", zap.String("action", string(action)), zap.String("state", string(machine.Snapshot().State)))
		}
	}
	machine.Wait()
	fmt.Fprintln(out)

	snap := machine.Snapshot()
	if snap.State != capture.StateDone {
		rt.logger.Fatal("upload failed", zap.Error(snap.UploadError))
	}
	rt.logger.Info("pitch uploaded", zap.String("ref", snap.Ref), zap.Int("bytes", snap.Artifact.Size()))
	fmt.Fprintln(out, snap.Ref)

	listingID, _ := cmd.Flags().GetString("listing")
	if listingID == "" {
		return
	}

	if err := rt.app.Refresh(ctx); err != nil {
		rt.logger.Fatal("loading listings", zap.Error(err))
	}
	unsubscribe := rt.app.Notices().Subscribe(noticePrinter(out))
	defer unsubscribe()

	pending := rt.app.Apply(app.ApplyInput{ListingID: listingID, VideoRef: snap.Ref})
	if pending == nil {
		rt.logger.Warn("application was not submitted", zap.String(logger.FieldListingID, listingID), zap.String("view", string(rt.app.View())))
		return
	}
	if err := pending.Wait(ctx); err != nil {
		rt.logger.Fatal("applying", zap.Error(err))
	}
}
