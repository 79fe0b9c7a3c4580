package gtfs

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// downtownFeed is a single route with one trip visiting S1, S2, S3. The
// stop_times rows are deliberately out of sequence order.
var downtownFeed = map[string]string{
	"routes.txt": "route_id,route_short_name,route_long_name\n" +
		"R1,1,Central Line\n",
	"stops.txt": "stop_id,stop_name,stop_lat,stop_lon\n" +
		"S3,Third,17.4300,78.4300\n" +
		"S1,First,17.4100,78.4100\n" +
		"S2,Second,17.4200,78.4200\n",
	"trips.txt": "route_id,service_id,trip_id,trip_headsign\n" +
		"R1,WK,T1,Downtown\n",
	"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"T1,08:10:00,08:10:00,S3,3\n" +
		"T1,08:00:00,08:00:00,S1,1\n" +
		"T1,08:05:00,08:05:00,S2,2\n",
}

// writeFeed creates <root>/<city>_GTFS with the given files.
func writeFeed(t *testing.T, root, city string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, city+"_GTFS")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

// withFiles returns a copy of base with overrides applied. An empty
// override removes the file.
func withFiles(base map[string]string, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		if v == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// writeArchive creates <root>/<city>_GTFS.zip holding a complete feed.
func writeArchive(t *testing.T, root, city string) string {
	t.Helper()
	files := map[string]string{
		"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n" +
			"TSRTC,City Bus,https://bus.example.com,UTC\n",
		"routes.txt": "route_id,agency_id,route_short_name,route_long_name,route_type\n" +
			"219,TSRTC,219,Secunderabad - Patancheru,3\n" +
			"10H,TSRTC,,Kondapur Loop,3\n",
		"stops.txt": "stop_id,stop_name,stop_lat,stop_lon\n" +
			"A,Secunderabad,17.4399,78.4983\n" +
			"B,Ameerpet,17.4375,78.4482\n" +
			"C,Patancheru,17.5326,78.2644\n",
		"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
			"WK,1,1,1,1,1,0,0,20250101,20251231\n",
		"trips.txt": "route_id,service_id,trip_id,trip_headsign\n" +
			"219,WK,219-1,Patancheru\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
			"219-1,06:00:00,06:00:00,A,1\n" +
			"219-1,06:20:00,06:20:00,B,2\n" +
			"219-1,07:00:00,07:00:00,C,3\n",
	}

	path := filepath.Join(root, city+"_GTFS.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, name := range []string{"agency.txt", "routes.txt", "stops.txt", "calendar.txt", "trips.txt", "stop_times.txt"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func stopIDs(stops []Stop) []string {
	ids := make([]string, 0, len(stops))
	for _, s := range stops {
		ids = append(ids, s.ID)
	}
	return ids
}
