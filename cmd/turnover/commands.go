package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/DukeRupert/turnover/internal/capture"
	"github.com/DukeRupert/turnover/internal/domain"
	"github.com/DukeRupert/turnover/internal/handler"
)

// roomFlags maps each room to the flag that names its photo or file.
var roomFlags = map[domain.Room]string{
	domain.RoomKitchen:    "kitchen",
	domain.RoomBathroom:   "bathroom",
	domain.RoomLivingRoom: "living-room",
	domain.RoomBedroom:    "bedroom",
}

func addRoomFlags(cmd *cobra.Command, what string) {
	for _, room := range domain.AllRooms() {
		cmd.Flags().String(roomFlags[room], "", fmt.Sprintf("%s %s", strings.ToLower(room.String()), what))
	}
}

func roomValues(cmd *cobra.Command) map[domain.Room]string {
	values := make(map[domain.Room]string, domain.RoomCount)
	for _, room := range domain.AllRooms() {
		v, _ := cmd.Flags().GetString(roomFlags[room])
		if v = strings.TrimSpace(v); v != "" {
			values[room] = v
		}
	}
	return values
}

// --- health ---

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server is up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHealth(cmd.Context(), newAPIClient(), cmd.OutOrStdout())
	},
}

func runHealth(ctx context.Context, c *apiClient, w io.Writer) error {
	resp, err := c.get(ctx, "/health")
	if err != nil {
		return err
	}
	var health handler.HealthResponse
	if err := decodeJSON(resp, &health); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(w, health)
	}
	fmt.Fprintf(w, "%s (%s)\n", health.Status, health.Time.Format(time.RFC3339))
	return nil
}

// --- upload ---

var uploadCmd = &cobra.Command{
	Use:   "upload <photo>",
	Short: "Upload one photo and print its remote file name",
	Long: `Upload one photo and print its remote file name.

The photo is decoded, oriented and re-encoded as JPEG before it is sent.
The printed file name can be passed to "turnover compare".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpload(cmd.Context(), newAPIClient(), args[0], cliLogger(), cmd.OutOrStdout())
	},
}

func runUpload(ctx context.Context, c *apiClient, path string, logger *slog.Logger, w io.Writer) error {
	img, err := capture.CaptureFile(ctx, path, logger)
	if err != nil {
		return err
	}

	resp, err := c.sendImages(ctx, http.MethodPost, "/upload", imagePart{
		Field:    "image",
		FileName: filepath.Base(path),
		Image:    img,
	})
	if err != nil {
		return err
	}
	var uploaded handler.UploadResponse
	if err := decodeJSON(resp, &uploaded); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(w, uploaded)
	}
	fmt.Fprintln(w, uploaded.FileName)
	return nil
}

// --- compare ---

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare four uploaded photos against the property baselines",
	Long: `Compare four uploaded photos against the property baselines.

Examples:
  turnover compare --kitchen files/abc --bathroom files/def \
    --living-room files/ghi --bedroom files/jkl`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		property, _ := cmd.Flags().GetString("property")
		return runCompare(cmd.Context(), newAPIClient(), property, roomValues(cmd), cmd.OutOrStdout())
	},
}

func init() {
	addRoomFlags(compareCmd, "remote file name")
	compareCmd.Flags().String("property", "", "property whose baselines to use")
}

func runCompare(ctx context.Context, c *apiClient, propertyID string, names map[domain.Room]string, w io.Writer) error {
	if err := requireRooms(names); err != nil {
		return err
	}

	resp, err := c.post(ctx, "/compare", handler.CompareRequest{
		KitchenFilename:    names[domain.RoomKitchen],
		BathroomFilename:   names[domain.RoomBathroom],
		LivingRoomFilename: names[domain.RoomLivingRoom],
		BedroomFilename:    names[domain.RoomBedroom],
		PropertyID:         propertyID,
	})
	if err != nil {
		return err
	}
	var result domain.InspectionResult
	if err := decodeJSON(resp, &result); err != nil {
		return err
	}
	return writeResult(w, result)
}

// --- inspect ---

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Run a full inspection from four photos on disk",
	Long: `Run a full inspection from four photos on disk.

A session is started, the photos are captured and uploaded, and the
analysis result is printed once all rooms are compared.

Examples:
  turnover inspect --property beach-house --kitchen k.jpg --bathroom b.jpg \
    --living-room l.jpg --bedroom bed.jpg`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := inspectOptions{Photos: roomValues(cmd)}
		opts.PropertyID, _ = cmd.Flags().GetString("property")
		opts.Async, _ = cmd.Flags().GetBool("async")
		opts.PollInterval, _ = cmd.Flags().GetDuration("poll-interval")
		return runInspect(cmd.Context(), newAPIClient(), opts, cliLogger(), cmd.OutOrStdout())
	},
}

func init() {
	addRoomFlags(inspectCmd, "photo path")
	inspectCmd.Flags().String("property", "", "property being inspected")
	inspectCmd.Flags().Bool("async", false, "queue the analysis and poll for the result")
	inspectCmd.Flags().Duration("poll-interval", 2*time.Second, "poll interval with --async")
}

type inspectOptions struct {
	PropertyID   string
	Photos       map[domain.Room]string
	Async        bool
	PollInterval time.Duration
}

func runInspect(ctx context.Context, c *apiClient, opts inspectOptions, logger *slog.Logger, w io.Writer) error {
	if err := requireRooms(opts.Photos); err != nil {
		return err
	}

	images, err := captureRooms(ctx, opts.Photos, logger)
	if err != nil {
		return err
	}

	resp, err := c.post(ctx, "/sessions", handler.CreateSessionRequest{PropertyID: opts.PropertyID})
	if err != nil {
		return err
	}
	var session domain.Session
	if err := decodeJSON(resp, &session); err != nil {
		return err
	}
	printStep("Session %s started for %s", session.ID, session.PropertyID)

	parts := make([]imagePart, 0, len(images))
	for _, room := range domain.AllRooms() {
		parts = append(parts, imagePart{
			Field:    room.Slug(),
			FileName: room.Slug() + ".jpg",
			Image:    images[room],
		})
	}
	sessionPath := "/sessions/" + session.ID.String()
	resp, err = c.sendImages(ctx, http.MethodPost, sessionPath+"/rooms", parts...)
	if err != nil {
		return err
	}
	if err := decodeJSON(resp, &session); err != nil {
		return err
	}
	for _, slot := range session.Slots {
		if slot.State == domain.SlotStateUploadFailed {
			printWarning("%s upload failed: %s", slot.Room, slot.Error)
		}
	}

	var result domain.InspectionResult
	if opts.Async {
		result, err = analyzeAsync(ctx, c, sessionPath, opts.PollInterval)
	} else {
		printStep("Analyzing")
		resp, err = c.post(ctx, sessionPath+"/analyze", nil)
		if err == nil {
			err = decodeJSON(resp, &result)
		}
	}
	if err != nil {
		return err
	}
	return writeResult(w, result)
}

// captureRooms runs every photo through the level gate concurrently.
func captureRooms(ctx context.Context, photos map[domain.Room]string, logger *slog.Logger) (map[domain.Room]domain.CapturedImage, error) {
	rooms := domain.AllRooms()
	captured := make([]domain.CapturedImage, len(rooms))

	g, gctx := errgroup.WithContext(ctx)
	for i, room := range rooms {
		g.Go(func() error {
			img, err := capture.CaptureFile(gctx, photos[room], logger)
			if err != nil {
				return fmt.Errorf("%s: %w", room, err)
			}
			captured[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	images := make(map[domain.Room]domain.CapturedImage, len(rooms))
	for i, room := range rooms {
		images[room] = captured[i]
	}
	return images, nil
}

// analyzeAsync queues the analysis and polls the session until it settles.
func analyzeAsync(ctx context.Context, c *apiClient, sessionPath string, interval time.Duration) (domain.InspectionResult, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	resp, err := c.post(ctx, sessionPath+"/analyze?async=true", nil)
	if err != nil {
		return domain.InspectionResult{}, err
	}
	if err := decodeJSON(resp, nil); err != nil {
		return domain.InspectionResult{}, err
	}
	printStep("Analysis queued")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		resp, err := c.get(ctx, sessionPath)
		if err != nil {
			return domain.InspectionResult{}, err
		}
		var session domain.Session
		if err := decodeJSON(resp, &session); err != nil {
			return domain.InspectionResult{}, err
		}

		switch session.Status {
		case domain.SessionStatusCompleted:
			if session.Result == nil {
				return domain.InspectionResult{}, fmt.Errorf("session %s completed without a result", session.ID)
			}
			return *session.Result, nil
		case domain.SessionStatusFailed:
			return domain.InspectionResult{}, fmt.Errorf("analysis failed: %s", session.Error)
		}

		select {
		case <-ctx.Done():
			return domain.InspectionResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// --- session ---

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or discard a session",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session and its result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessionShow(cmd.Context(), newAPIClient(), args[0], cmd.OutOrStdout())
	},
}

var sessionDiscardCmd = &cobra.Command{
	Use:   "discard <id>",
	Short: "Discard a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newAPIClient().delete(cmd.Context(), "/sessions/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Session %s discarded", args[0])
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionShowCmd, sessionDiscardCmd)
}

func runSessionShow(ctx context.Context, c *apiClient, id string, w io.Writer) error {
	resp, err := c.get(ctx, "/sessions/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	var session domain.Session
	if err := decodeJSON(resp, &session); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(w, session)
	}

	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Session:"), session.ID)
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Property:"), session.PropertyID)
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Status:"), session.Status)
	for _, slot := range session.Slots {
		line := fmt.Sprintf("  %-12s %s", slot.Room, slot.State)
		if slot.Error != "" {
			line += " (" + slot.Error + ")"
		}
		fmt.Fprintln(w, line)
	}
	if session.Error != "" {
		fmt.Fprintf(w, "%s %s\n", colorize(colorRed, "Error:"), session.Error)
	}
	if session.Result != nil {
		fmt.Fprintln(w)
		return printResult(w, *session.Result)
	}
	return nil
}

// --- baselines ---

var baselinesCmd = &cobra.Command{
	Use:   "baselines",
	Short: "List or register baseline photos",
}

var baselinesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the baselines of a property",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		property, _ := cmd.Flags().GetString("property")
		return runBaselinesList(cmd.Context(), newAPIClient(), property, cmd.OutOrStdout())
	},
}

var baselinesSetCmd = &cobra.Command{
	Use:   "set <room> <photo>",
	Short: "Register a photo as the baseline of a room",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		property, _ := cmd.Flags().GetString("property")
		return runBaselinesSet(cmd.Context(), newAPIClient(), property, args[0], args[1], cliLogger(), cmd.OutOrStdout())
	},
}

func init() {
	baselinesListCmd.Flags().String("property", "default", "property id")
	baselinesSetCmd.Flags().String("property", "default", "property id")
	baselinesCmd.AddCommand(baselinesListCmd, baselinesSetCmd)
}

func runBaselinesList(ctx context.Context, c *apiClient, propertyID string, w io.Writer) error {
	resp, err := c.get(ctx, "/properties/"+url.PathEscape(propertyID)+"/baselines")
	if err != nil {
		return err
	}
	var list handler.BaselinesResponse
	if err := decodeJSON(resp, &list); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(w, list)
	}

	for _, room := range domain.AllRooms() {
		name, ok := list.Baselines[room]
		if !ok {
			name = colorize(colorYellow, "(missing)")
		}
		fmt.Fprintf(w, "%-12s %s\n", room, name)
	}
	return nil
}

func runBaselinesSet(ctx context.Context, c *apiClient, propertyID, roomArg, path string, logger *slog.Logger, w io.Writer) error {
	room, err := domain.ParseRoom(roomArg)
	if err != nil {
		return err
	}
	img, err := capture.CaptureFile(ctx, path, logger)
	if err != nil {
		return err
	}

	resp, err := c.sendImages(ctx, http.MethodPut,
		"/properties/"+url.PathEscape(propertyID)+"/baselines/"+room.Slug(),
		imagePart{Field: "image", FileName: filepath.Base(path), Image: img})
	if err != nil {
		return err
	}
	var asset domain.RemoteAsset
	if err := decodeJSON(resp, &asset); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(w, asset)
	}
	fmt.Fprintln(w, asset.Name)
	return nil
}

// --- helpers ---

func requireRooms(values map[domain.Room]string) error {
	var missing []string
	for _, room := range domain.AllRooms() {
		if values[room] == "" {
			missing = append(missing, "--"+roomFlags[room])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}
	return nil
}

func writeResult(w io.Writer, result domain.InspectionResult) error {
	if jsonOutput {
		return printJSON(w, result)
	}
	return printResult(w, result)
}
