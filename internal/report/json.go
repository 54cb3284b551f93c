package report

import (
	"encoding/json"

	"svcscan/internal/httpmsg"
	"svcscan/internal/scan"
)

// jsonIndent is the pretty-printing indent for saved JSON reports.
const jsonIndent = "    "

type appInfoJSON struct {
	Name       string `json:"name"`
	Repository string `json:"repository"`
}

type scanSummaryJSON struct {
	Duration   int64    `json:"duration"`
	StartTime  int64    `json:"startTime"`
	EndTime    int64    `json:"endTime"`
	ReportPath string   `json:"reportPath"`
	Executable string   `json:"executable"`
	Arguments  []string `json:"arguments"`
}

type requestJSON struct {
	Version string            `json:"version"`
	Method  string            `json:"method"`
	URI     string            `json:"uri"`
	Headers map[string]string `json:"headers"`
}

type responseJSON struct {
	Version string            `json:"version"`
	Status  int               `json:"status"`
	Reason  string            `json:"reason"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

type httpInfoJSON struct {
	Request  requestJSON  `json:"request"`
	Response responseJSON `json:"response"`
}

type serviceJSON struct {
	Port        uint16        `json:"port"`
	Protocol    string        `json:"protocol"`
	State       string        `json:"state"`
	Service     string        `json:"service"`
	Summary     string        `json:"summary"`
	Banner      string        `json:"banner"`
	CipherSuite string        `json:"cipherSuite,omitempty"`
	X509Issuer  *string       `json:"x509Issuer,omitempty"`
	X509Subject *string       `json:"x509Subject,omitempty"`
	HTTPInfo    *httpInfoJSON `json:"httpInfo,omitempty"`
}

type scanResultsJSON struct {
	Target   string        `json:"target"`
	Services []serviceJSON `json:"services"`
}

type reportJSON struct {
	AppInfo     appInfoJSON     `json:"appInfo"`
	ScanSummary scanSummaryJSON `json:"scanSummary"`
	ScanResults scanResultsJSON `json:"scanResults"`
}

// JSON renders the full scan report document, pretty-printed with
// 4-space indentation. Services are assumed sorted by port.
func JSON(in Input) ([]byte, error) {
	doc := reportJSON{
		AppInfo: appInfoJSON{Name: AppName, Repository: AppRepo},
		ScanSummary: scanSummaryJSON{
			Duration:  in.Timer.Elapsed().Milliseconds(),
			StartTime: in.Timer.StartTime().UnixMilli(),
			EndTime:   in.Timer.EndTime().UnixMilli(),
		},
		ScanResults: scanResultsJSON{
			Target:   in.Target,
			Services: make([]serviceJSON, 0, len(in.Services)),
		},
	}
	if in.Args != nil {
		doc.ScanSummary.ReportPath = in.Args.OutPath
		doc.ScanSummary.Executable = in.Args.ExePath
		doc.ScanSummary.Arguments = in.Args.Argv
	}
	if doc.ScanSummary.Arguments == nil {
		doc.ScanSummary.Arguments = []string{}
	}

	for _, svc := range in.Services {
		doc.ScanResults.Services = append(doc.ScanResults.Services, makeService(svc))
	}
	return json.MarshalIndent(doc, "", jsonIndent)
}

func makeService(svc *scan.ServiceInfo) serviceJSON {
	out := serviceJSON{
		Port:     svc.Port,
		Protocol: protocolOf(svc),
		State:    string(svc.State),
		Service:  svc.Service,
		Summary:  svc.Summary,
		Banner:   svc.Banner,
	}

	// TLS keys travel together, keyed off a captured cipher.
	if svc.Cipher != "" {
		out.CipherSuite = svc.Cipher
		issuer, subject := svc.Issuer, svc.Subject
		out.X509Issuer = &issuer
		out.X509Subject = &subject
	}

	if svc.Response != nil && len(svc.Response.Headers()) > 0 {
		out.HTTPInfo = &httpInfoJSON{
			Request:  makeRequest(svc.Request),
			Response: makeResponse(svc.Response),
		}
	}
	return out
}

func makeRequest(req *httpmsg.Request) requestJSON {
	if req == nil {
		return requestJSON{Headers: map[string]string{}}
	}
	return requestJSON{
		Version: req.Version.Dotted(),
		Method:  req.Method,
		URI:     req.URI,
		Headers: req.Headers(),
	}
}

func makeResponse(resp *httpmsg.Response) responseJSON {
	return responseJSON{
		Version: resp.Version.Dotted(),
		Status:  resp.StatusCode,
		Reason:  resp.Reason,
		Headers: resp.Headers(),
		Body:    resp.Body(),
	}
}

func protocolOf(svc *scan.ServiceInfo) string {
	if svc.Proto == "" {
		return "tcp"
	}
	return svc.Proto
}
