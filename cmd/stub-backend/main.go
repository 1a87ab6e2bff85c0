// Dev stub standing in for both external services: the speech recognition
// backend and the interview analysis API. Point the transcriber's
// transcription.endpoint at /recognize and dispatch.endpoint at the root.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hirestream/interview-transcriber/internal/audio"
)

type word struct {
	Text       string  `json:"word"`
	SpeakerTag int     `json:"speaker_tag,omitempty"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
}

type utterance struct {
	Transcript string `json:"transcript"`
	Words      []word `json:"words"`
}

type recognizeResponse struct {
	Results     []utterance `json:"results"`
	RequestID   string      `json:"request_id,omitempty"`
	ProcessedAt time.Time   `json:"processed_at"`
}

// Canned interviewer/candidate exchange returned for every diarized request
var diarizedScript = []utterance{
	{
		Transcript: "What is your experience with distributed systems?",
		Words: []word{
			{Text: "What", SpeakerTag: 1, Start: 0.0, End: 0.3},
			{Text: "is", SpeakerTag: 1, Start: 0.3, End: 0.5},
			{Text: "your", SpeakerTag: 1, Start: 0.5, End: 0.7},
			{Text: "experience", SpeakerTag: 1, Start: 0.7, End: 1.2},
			{Text: "with", SpeakerTag: 1, Start: 1.2, End: 1.4},
			{Text: "distributed", SpeakerTag: 1, Start: 1.4, End: 2.0},
			{Text: "systems?", SpeakerTag: 1, Start: 2.0, End: 2.5},
		},
	},
	{
		Transcript: "I spent three years building event pipelines.",
		Words: []word{
			{Text: "I", SpeakerTag: 2, Start: 3.0, End: 3.1},
			{Text: "spent", SpeakerTag: 2, Start: 3.1, End: 3.4},
			{Text: "three", SpeakerTag: 2, Start: 3.4, End: 3.7},
			{Text: "years", SpeakerTag: 2, Start: 3.7, End: 4.0},
			{Text: "building", SpeakerTag: 2, Start: 4.0, End: 4.4},
			{Text: "event", SpeakerTag: 2, Start: 4.4, End: 4.7},
			{Text: "pipelines.", SpeakerTag: 2, Start: 4.7, End: 5.3},
		},
	},
}

func recognizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	requestID := r.FormValue("request_id")
	language := r.FormValue("language")
	diarization := r.FormValue("enable_diarization") == "true"

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	if err := audio.ValidateWAV(audioData); err != nil {
		log.Printf("❌ Rejected upload: %v", err)
		http.Error(w, "Invalid WAV file", http.StatusBadRequest)
		return
	}

	duration, err := audio.GetWAVDuration(audioData)
	if err != nil {
		log.Printf("❌ Rejected upload: %v", err)
		http.Error(w, "Invalid WAV file", http.StatusBadRequest)
		return
	}

	log.Printf("🎤 RECOGNITION REQUEST:")
	log.Printf("    Request ID: %s", requestID)
	log.Printf("    Filename: %s (%d bytes, %.1fs)", header.Filename, len(audioData), duration)
	log.Printf("    Language: %s", language)
	log.Printf("    Diarization: %v", diarization)

	// Simulate processing time
	time.Sleep(200 * time.Millisecond)

	response := recognizeResponse{
		RequestID:   requestID,
		ProcessedAt: time.Now(),
	}
	if diarization {
		response.Results = diarizedScript
	} else {
		response.Results = []utterance{
			{
				Transcript: "Tell me about yourself.",
				Words: []word{
					{Text: "Tell", Start: 0.0, End: 0.3},
					{Text: "me", Start: 0.3, End: 0.5},
					{Text: "about", Start: 0.5, End: 0.8},
					{Text: "yourself.", Start: 0.8, End: 1.4},
				},
			},
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("✅ RECOGNITION RESPONSE SENT: %d utterances", len(response.Results))
	log.Println("---")
}

type analysisPayload struct {
	Transcript      string    `json:"transcript"`
	CurrentQuestion string    `json:"current_question"`
	CandidateAnswer string    `json:"candidate_answer"`
	Timestamp       time.Time `json:"timestamp"`
}

func analysisHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Expect /{interview_id}/realtime-analysis/
	if !strings.HasSuffix(r.URL.Path, "/realtime-analysis/") {
		http.NotFound(w, r)
		return
	}
	interviewID := strings.Trim(strings.TrimSuffix(r.URL.Path, "/realtime-analysis/"), "/")

	var payload analysisPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Error parsing payload", http.StatusBadRequest)
		return
	}

	log.Printf("📝 ANALYSIS PAYLOAD RECEIVED:")
	log.Printf("    Interview ID: %s", interviewID)
	log.Printf("    Authorization: %s", r.Header.Get("Authorization"))
	log.Printf("    Transcript: %q", payload.Transcript)
	log.Printf("    Current Question: %q", payload.CurrentQuestion)
	log.Printf("    Candidate Answer: %q", payload.CandidateAnswer)
	log.Println("---")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

func main() {
	addr := flag.String("addr", ":9000", "Listen address")
	flag.Parse()

	http.HandleFunc("/recognize", recognizeHandler)
	http.HandleFunc("/", analysisHandler)

	log.Printf("🚀 Stub backend starting on %s", *addr)
	log.Printf("📡 Recognition: http://localhost%s/recognize", *addr)
	log.Printf("📡 Analysis: http://localhost%s/{interview_id}/realtime-analysis/", *addr)
	log.Println("💡 Point transcription.endpoint and dispatch.endpoint at these")

	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
