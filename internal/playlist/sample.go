package playlist

import "github.com/jmylchreest/tvplay/internal/models"

// Sample returns the built-in demonstration playlist: one live HLS stream,
// two HLS streams, one MP4 and one WebM file.
func Sample() []models.Channel {
	return []models.Channel{
		{
			ID:    "0",
			Name:  "Live Stream",
			URL:   "https://td3wb1bchdvsahp.ngolpdkyoctjcddxshli469r.org/sunshine/xRyrVSyJi6hnr4jBjkU7FhWULb063F_FFxY4mK4PgjsN9s99HISeGwjjrWjxiSAk44ejaarMfe6YW_4_3okS5AxnoFhtPbgY6jooNz9VJ788jfNL44CL_qSWvm9mn8Qf7xw4FR0ST0MCw7_gsQSH2OPiThfjNqbl4n6GzL39LjKRbNNAD1Wx0bE5kCTj8YmtM7o9cQ0CrA7M_sKi4nkA0Wg_jF1pglSqRAOssemJuKE/hls/index.m3u8",
			Logo:  "https://images.pexels.com/photos/1174952/pexels-photo-1174952.jpeg?auto=compress&cs=tinysrgb&w=100&h=100&fit=crop",
			Group: "Live Channels",
		},
		{
			ID:    "1",
			Name:  "Sample HLS Stream",
			URL:   "https://demo.unified-streaming.com/k8s/features/stable/video/tears-of-steel/tears-of-steel.ism/.m3u8",
			Logo:  "https://images.pexels.com/photos/1174952/pexels-photo-1174952.jpeg?auto=compress&cs=tinysrgb&w=100&h=100&fit=crop",
			Group: "HLS Streams",
		},
		{
			ID:    "2",
			Name:  "Sample Live Stream",
			URL:   "https://cph-p2p-msl.akamaized.net/hls/live/2000341/test/master.m3u8",
			Logo:  "https://images.pexels.com/photos/3394650/pexels-photo-3394650.jpeg?auto=compress&cs=tinysrgb&w=100&h=100&fit=crop",
			Group: "HLS Streams",
		},
		{
			ID:    "3",
			Name:  "Big Buck Bunny (MP4)",
			URL:   "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4",
			Logo:  "https://images.pexels.com/photos/2662116/pexels-photo-2662116.jpeg?auto=compress&cs=tinysrgb&w=100&h=100&fit=crop",
			Group: "MP4 Streams",
		},
		{
			ID:    "4",
			Name:  "Sintel (WebM)",
			URL:   "https://upload.wikimedia.org/wikipedia/commons/transcoded/b/b3/Big_Buck_Bunny_Trailer_400p.ogv/Big_Buck_Bunny_Trailer_400p.ogv.360p.webm",
			Logo:  "https://images.pexels.com/photos/3945313/pexels-photo-3945313.jpeg?auto=compress&cs=tinysrgb&w=100&h=100&fit=crop",
			Group: "WebM Streams",
		},
	}
}
